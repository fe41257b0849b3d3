package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// Multi fans a notification out to every sink. One failing sink does not
// stop the others; all failures are joined.
type Multi struct {
	sinks  []interfaces.Notifier
	logger arbor.ILogger
}

var _ interfaces.Notifier = (*Multi)(nil)

// NewMulti creates a fan-out notifier
func NewMulti(logger arbor.ILogger, sinks ...interfaces.Notifier) *Multi {
	return &Multi{sinks: sinks, logger: logger}
}

func (m *Multi) Name() string {
	return "multi"
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Notify(ctx context.Context, n interfaces.Notification) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, n); err != nil {
			m.logger.Error().Err(err).Str("sink", sink.Name()).Msg("Notification failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
