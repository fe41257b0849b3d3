package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// ConsoleNotifier prints digests instead of sending them. Local runs use it
// in place of the webhook.
type ConsoleNotifier struct {
	out    io.Writer
	logger arbor.ILogger
}

var _ interfaces.Notifier = (*ConsoleNotifier)(nil)

// NewConsoleNotifier writes to out, or stdout when out is nil.
func NewConsoleNotifier(out io.Writer, logger arbor.ILogger) *ConsoleNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleNotifier{out: out, logger: logger}
}

func (c *ConsoleNotifier) Name() string {
	return "console"
}

func (c *ConsoleNotifier) Notify(ctx context.Context, n interfaces.Notification) error {
	c.logger.Info().Str("ticker", n.Ticker).Msg("Local mode, printing digest")
	_, err := fmt.Fprintf(c.out, "%s\n", n.Message)
	return err
}
