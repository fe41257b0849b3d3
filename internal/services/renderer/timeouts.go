package renderer

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/earningsear/internal/models"
)

// Escalation hands out a short timeout until Threshold timeouts have been
// observed, then the long one. Each retry loop owns its own Escalation.
type Escalation struct {
	Short     time.Duration
	Long      time.Duration
	Threshold int

	timeouts int
}

// NewEscalation creates an escalating timeout budget
func NewEscalation(short, long time.Duration, threshold int) *Escalation {
	return &Escalation{Short: short, Long: long, Threshold: threshold}
}

// Current returns the budget for the next operation.
func (e *Escalation) Current() time.Duration {
	if e.timeouts < e.Threshold {
		return e.Short
	}
	return e.Long
}

// Observe records err and reports whether it was a timeout.
func (e *Escalation) Observe(err error) bool {
	if !IsTimeout(err) {
		return false
	}
	e.timeouts++
	return true
}

// Timeouts returns how many timeouts have been observed.
func (e *Escalation) Timeouts() int {
	return e.timeouts
}

// IsTimeout reports navigation, wait and extraction timeouts.
func IsTimeout(err error) bool {
	return err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrExtractionTimeout))
}
