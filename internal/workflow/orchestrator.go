package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/services/digest"
	"github.com/ternarybob/earningsear/internal/services/discovery"
	"github.com/ternarybob/earningsear/internal/services/metrics"
)

// State is a workflow phase.
type State string

const (
	StateInit       State = "INIT"
	StateLocating   State = "LOCATING"
	StateExtracting State = "EXTRACTING"
	StateAnalyzing  State = "ANALYZING"
	StateNotifying  State = "NOTIFYING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Run outcomes recorded in metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// LinkFinder locates the release link for a site.
type LinkFinder interface {
	Find(ctx context.Context, cfg models.WorkflowConfig) discovery.Outcome
}

// ContentExtractor reads the release behind a link.
type ContentExtractor interface {
	Extract(ctx context.Context, cfg models.WorkflowConfig, link string) (string, error)
}

// MetricsExtractor turns release text into structured metrics.
type MetricsExtractor interface {
	Extract(ctx context.Context, site models.WorkflowConfig, content string) (*models.ExtractedMetrics, error)
}

// Deps are the collaborators of one run. Artifacts may be nil.
type Deps struct {
	Finder    LinkFinder
	Extractor ContentExtractor
	Metrics   MetricsExtractor
	Notifier  interfaces.Notifier
	Messages  interfaces.MessageStorage
	Artifacts interfaces.ArtifactStorage
	Logger    arbor.ILogger

	// Now and NewID default to time.Now and common.NewMessageID.
	Now   func() time.Time
	NewID func() string
}

// Result is the outcome of Process. Exactly one of Message and Error is set.
type Result struct {
	MessageID string `json:"message_id,omitempty"`
	Ticker    string `json:"ticker"`
	Quarter   int    `json:"quarter"`
	Year      int    `json:"year"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	State     State  `json:"state"`

	err error
}

// Err returns the error that failed the run, or nil.
func (r Result) Err() error {
	return r.err
}

// Orchestrator runs one site through locate, extract, analyze and notify.
// It is single use and not safe for concurrent calls.
type Orchestrator struct {
	site   models.WorkflowConfig
	deps   Deps
	logger arbor.ILogger

	state   State
	history []State
}

// New creates an orchestrator for site
func New(site models.WorkflowConfig, deps Deps) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = common.NewMessageID
	}
	logger := deps.Logger
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Orchestrator{
		site:    site.WithDefaults(),
		deps:    deps,
		logger:  logger.WithCorrelationId(site.Ticker),
		state:   StateInit,
		history: []State{StateInit},
	}
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	return o.state
}

// History returns every phase entered, in order.
func (o *Orchestrator) History() []State {
	return append([]State(nil), o.history...)
}

func (o *Orchestrator) enter(s State) {
	o.state = s
	o.history = append(o.history, s)
	o.logger.Debug().Str("state", string(s)).Msg("Workflow state")
}

// Process runs the workflow. Failures, including panics, come back in the
// Result rather than as an error.
func (o *Orchestrator) Process(ctx context.Context) (result Result) {
	start := o.deps.Now()
	result = Result{
		Ticker:  o.site.Ticker,
		Quarter: o.site.Quarter.Int(),
		Year:    o.site.Year.Int(),
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Workflow panicked")
			result = o.fail(result, fmt.Errorf("workflow panic: %v", r))
		}
		outcome := OutcomeSuccess
		if result.Error != "" {
			outcome = OutcomeFailed
		}
		metrics.ObserveRun(o.site.Ticker, outcome, o.deps.Now().Sub(start))
		result.State = o.state
	}()

	o.logger.Info().
		Str("ticker", o.site.Ticker).
		Int("quarter", result.Quarter).
		Int("year", result.Year).
		Msg("Starting earnings workflow")

	o.enter(StateLocating)
	found := o.deps.Finder.Find(ctx, o.site)
	if found.Status != discovery.Found {
		err := found.Err()
		if err == nil {
			err = fmt.Errorf("%w: locator returned %s", models.ErrLinkNotFound, found.Status)
		}
		return o.fail(result, err)
	}
	o.logger.Info().Str("link", found.Link).Int("attempts", found.Attempts).Msg("Located earnings release")

	o.enter(StateExtracting)
	content, err := o.deps.Extractor.Extract(ctx, o.site, found.Link)
	if err != nil {
		return o.fail(result, err)
	}

	o.enter(StateAnalyzing)
	extracted, err := o.deps.Metrics.Extract(ctx, o.site, content)
	if err != nil {
		return o.fail(result, err)
	}
	historical, err := o.site.JSONData.Values()
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: json_data: %v", models.ErrInvalidConfig, err))
	}
	message, err := digest.Compose(extracted, historical, o.site.Ticker, result.Quarter)
	if err != nil {
		return o.fail(result, err)
	}

	o.enter(StateNotifying)
	notification := interfaces.Notification{
		Ticker:  o.site.Ticker,
		Quarter: result.Quarter,
		Year:    result.Year,
		Message: message,
	}
	if o.deps.Notifier != nil {
		if err := o.deps.Notifier.Notify(ctx, notification); err != nil {
			o.logger.Error().Err(err).Msg("Failed to deliver digest")
		}
	}

	now := o.deps.Now()
	result.MessageID = o.deps.NewID()
	result.Message = message.String()
	o.persist(ctx, result, now)
	o.storeArtifact(ctx, found.Link, content, extracted, message, now)

	o.enter(StateDone)
	o.logger.Info().Str("message_id", result.MessageID).Msg("Earnings workflow complete")
	return result
}

func (o *Orchestrator) fail(result Result, err error) Result {
	if err == nil {
		err = errors.New("unknown failure")
	}
	o.logger.Error().Err(err).Str("state", string(o.state)).Msg("Earnings workflow failed")
	o.enter(StateFailed)
	result.MessageID = ""
	result.Message = ""
	result.Error = err.Error()
	result.err = err
	return result
}

// persist stores the sent digest. Errors are logged only; the digest has
// already gone out.
func (o *Orchestrator) persist(ctx context.Context, result Result, at time.Time) {
	if o.deps.Messages == nil {
		return
	}
	err := o.deps.Messages.SaveMessage(ctx, &models.StoredMessage{
		MessageID: result.MessageID,
		Ticker:    result.Ticker,
		Quarter:   result.Quarter,
		Year:      result.Year,
		Timestamp: at,
		Message:   result.Message,
	})
	if err != nil {
		o.logger.Error().Err(err).Str("message_id", result.MessageID).Msg("Failed to persist message")
	}
}

func (o *Orchestrator) storeArtifact(ctx context.Context, link, content string, extracted *models.ExtractedMetrics, message models.DigestMessage, at time.Time) {
	if o.deps.Artifacts == nil {
		return
	}
	artifact := &models.Artifact{
		Key:            models.ArtifactKey(o.site.Ticker, at),
		Ticker:         o.site.Ticker,
		Timestamp:      at.UTC().Format(models.ArtifactTimeFormat),
		ScrapedURL:     link,
		ScrapedContent: content,
		LLMResponse:    extracted.Raw,
		Message:        message.String(),
		Config:         o.site.Redacted(),
	}
	if err := o.deps.Artifacts.SaveArtifact(ctx, artifact); err != nil {
		o.logger.Warn().Err(err).Str("key", artifact.Key).Msg("Failed to store artifact")
	}
}

// Failed builds the Result for a run that could not start.
func Failed(site models.WorkflowConfig, err error) Result {
	return Result{
		Ticker:  site.Ticker,
		Quarter: site.Quarter.Int(),
		Year:    site.Year.Int(),
		Error:   err.Error(),
		State:   StateFailed,
		err:     err,
	}
}
