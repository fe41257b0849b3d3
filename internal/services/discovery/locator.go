package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/services/metrics"
	"github.com/ternarybob/earningsear/internal/services/renderer"
	"github.com/ternarybob/earningsear/internal/services/retry"
)

// Status tags a locator Outcome.
type Status int

const (
	// NotReady means the listing did not yet show a matching link.
	NotReady Status = iota
	// Found means Link holds the winning href.
	Found
	// Exhausted means the attempt budget ran out.
	Exhausted
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Exhausted:
		return "exhausted"
	default:
		return "not_ready"
	}
}

// Outcome is the result of one iteration or of a whole Locate call.
type Outcome struct {
	Status    Status
	Link      string
	Candidate models.LinkCandidate
	Attempts  int
	Reason    string
	Cause     error
}

// Err converts an Exhausted outcome into an error wrapping ErrLinkNotFound.
func (o Outcome) Err() error {
	if o.Status != Exhausted {
		return nil
	}
	if o.Cause != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrLinkNotFound, o.Reason, o.Cause)
	}
	return fmt.Errorf("%w: %s", models.ErrLinkNotFound, o.Reason)
}

// LocatorConfig is the locator's retry budget.
type LocatorConfig struct {
	Attempts          int
	MaxIdleIterations int
	IterationSleep    time.Duration
	NavShort          time.Duration
	NavLong           time.Duration
	SelectorShort     time.Duration
	SelectorLong      time.Duration
	EscalateAfter     int
}

// LocatorConfigFrom reads the budget from the service configuration.
func LocatorConfigFrom(cfg common.RunConfig) LocatorConfig {
	return LocatorConfig{
		Attempts:          cfg.LocatorAttempts,
		MaxIdleIterations: cfg.MaxIdleIterations,
		IterationSleep:    common.Duration(cfg.IterationSleep, 3*time.Second),
		NavShort:          common.Duration(cfg.NavTimeout, 5*time.Second),
		NavLong:           common.Duration(cfg.NavTimeoutLong, 10*time.Second),
		SelectorShort:     common.Duration(cfg.SelectorTimeout, 5*time.Second),
		SelectorLong:      common.Duration(cfg.SelectorLong, 10*time.Second),
		EscalateAfter:     cfg.ShortTimeoutCount,
	}
}

// Locator polls an IR listing page until a release link scores above zero.
//
// Iterations that find no elements at all do not consume an attempt (the page
// is still rendering); they are capped separately by MaxIdleIterations.
// Iterations that find elements but no scoring link consume an attempt and
// sleep IterationSleep before the next one. So do iterations whose navigation
// failed outright rather than timing out.
type Locator struct {
	policy interfaces.RendererPolicy
	config LocatorConfig
	logger arbor.ILogger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewLocator creates a locator over the given engine policy
func NewLocator(policy interfaces.RendererPolicy, config LocatorConfig, logger arbor.ILogger) *Locator {
	if config.Attempts <= 0 {
		config.Attempts = 8
	}
	if config.MaxIdleIterations <= 0 {
		config.MaxIdleIterations = 32
	}
	return &Locator{
		policy: policy,
		config: config,
		logger: logger,
		sleep:  retry.Sleep,
	}
}

// Locate runs the locator state machine for cfg. The returned Outcome is
// either Found or Exhausted.
func (l *Locator) Locate(ctx context.Context, cfg models.WorkflowConfig) Outcome {
	keywords := BuildKeywords(cfg.VerifyKeywords, cfg.Quarter.Int(), cfg.Year.Int())
	opts := ScoreOptionsFor(cfg)
	selector := cfg.PrimarySelector()

	l.logger.Info().
		Str("ticker", cfg.Ticker).
		Str("url", cfg.BaseURL).
		Strs("keywords", keywords).
		Msg("Locating earnings release link")

	nav := renderer.NewEscalation(l.config.NavShort, l.config.NavLong, l.config.EscalateAfter)
	wait := renderer.NewEscalation(l.config.SelectorShort, l.config.SelectorLong, l.config.EscalateAfter)

	s := renderer.NewSession(l.logger)
	defer s.Close()

	attempt, idle := 0, 0
	var navErr error
	for attempt < l.config.Attempts {
		if err := ctx.Err(); err != nil {
			return Outcome{Status: Exhausted, Attempts: attempt, Reason: "cancelled", Cause: err}
		}

		page, err := s.PageFor(ctx, l.policy.ForAttempt(attempt))
		if err != nil {
			l.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Failed to open renderer session")
			attempt++
			if err := l.sleep(ctx, l.config.IterationSleep); err != nil {
				return Outcome{Status: Exhausted, Attempts: attempt, Reason: "cancelled", Cause: err}
			}
			continue
		}

		var anchors []models.Anchor
		anchors, navErr = l.collect(ctx, page, cfg.BaseURL, selector, nav, wait, attempt)

		if len(anchors) == 0 && navErr != nil {
			metrics.ObserveLocatorAttempt(cfg.Ticker, metrics.AttemptNoAnchor)
			attempt++
			if attempt < l.config.Attempts {
				if err := l.sleep(ctx, l.config.IterationSleep); err != nil {
					return Outcome{Status: Exhausted, Attempts: attempt, Reason: "cancelled", Cause: err}
				}
			}
			continue
		}

		if len(anchors) == 0 {
			idle++
			metrics.ObserveLocatorAttempt(cfg.Ticker, metrics.AttemptNoAnchor)
			l.logger.Debug().Int("idle", idle).Msg("No elements found, page not ready")
			if idle >= l.config.MaxIdleIterations {
				return Outcome{
					Status:   Exhausted,
					Attempts: attempt,
					Reason:   fmt.Sprintf("no elements matched %q after %d iterations", selector, idle),
				}
			}
			continue
		}

		out := evaluate(anchors, keywords, opts)
		if out.Status == Found {
			metrics.ObserveLocatorAttempt(cfg.Ticker, metrics.AttemptFound)
			out.Attempts = attempt + 1
			l.logger.Info().
				Str("link", out.Link).
				Int("score", out.Candidate.Score).
				Int("attempt", attempt+1).
				Msg("Found earnings release link")
			return out
		}

		metrics.ObserveLocatorAttempt(cfg.Ticker, metrics.AttemptNoScore)
		attempt++
		l.logger.Info().
			Int("attempt", attempt).
			Int("max_attempts", l.config.Attempts).
			Int("anchors", len(anchors)).
			Msg("No link matched keywords, retrying")

		if attempt < l.config.Attempts {
			if err := l.sleep(ctx, l.config.IterationSleep); err != nil {
				return Outcome{Status: Exhausted, Attempts: attempt, Reason: "cancelled", Cause: err}
			}
		}
	}

	if navErr != nil {
		return Outcome{
			Status:   Exhausted,
			Attempts: attempt,
			Reason:   fmt.Sprintf("navigation failed after %d attempts", attempt),
			Cause:    navErr,
		}
	}
	return Outcome{
		Status:   Exhausted,
		Attempts: attempt,
		Reason:   fmt.Sprintf("no scoring link after %d attempts", attempt),
	}
}

// collect navigates, waits for the selector and returns the anchors. Timeouts
// are tolerated: whatever loaded is still queried. A navigation failure other
// than a timeout is returned alongside the anchors.
func (l *Locator) collect(ctx context.Context, page interfaces.Page, url, selector string, nav, wait *renderer.Escalation, attempt int) ([]models.Anchor, error) {
	var navErr error
	if err := page.Navigate(ctx, url, nav.Current()); err != nil {
		if nav.Observe(err) {
			l.logger.Warn().Int("attempt", attempt+1).Int("timeouts", nav.Timeouts()).Msg("Navigation timed out, reading partial page")
		} else {
			l.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Navigation failed")
			navErr = err
		}
	}

	if err := page.WaitFor(ctx, selector, wait.Current()); err != nil {
		if wait.Observe(err) {
			l.logger.Debug().Int("timeouts", wait.Timeouts()).Msg("Selector wait timed out")
		} else {
			l.logger.Debug().Err(err).Msg("Selector wait failed")
		}
	}

	anchors, err := page.QueryAll(ctx, selector)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to query anchors")
		return nil, navErr
	}
	return anchors, navErr
}

// evaluate scores one batch of anchors. It returns Found or NotReady. With a
// key phrase and no refinement the first matching anchor wins unscored.
func evaluate(anchors []models.Anchor, keywords []string, opts ScoreOptions) Outcome {
	if opts.KeyPhrase != "" && !opts.Refine {
		if first, ok := FirstWithPhrase(anchors, opts.KeyPhrase); ok {
			return Outcome{Status: Found, Link: first.Href, Candidate: first}
		}
		return Outcome{Status: NotReady}
	}

	best, ok := Best(Score(anchors, keywords, opts))
	if !ok {
		return Outcome{Status: NotReady}
	}
	return Outcome{Status: Found, Link: best.Href, Candidate: best}
}
