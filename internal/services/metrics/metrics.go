package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ternarybob/arbor"
)

// Locator attempt results.
const (
	AttemptFound    = "found"
	AttemptNoScore  = "no_score"
	AttemptNoAnchor = "no_elements"
)

var (
	WorkflowRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "earningsear_workflow_runs_total",
			Help: "Total number of workflow runs by outcome",
		},
		[]string{"ticker", "outcome"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "earningsear_workflow_duration_seconds",
			Help:    "Duration of workflow runs in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"ticker"},
	)

	LocatorAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "earningsear_locator_attempts_total",
			Help: "Total number of link locator iterations by result",
		},
		[]string{"ticker", "result"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "earningsear_llm_requests_total",
			Help: "Total number of LLM completion requests by status",
		},
		[]string{"provider", "status"},
	)
)

// ObserveRun records one finished workflow run.
func ObserveRun(ticker, outcome string, elapsed time.Duration) {
	WorkflowRuns.WithLabelValues(ticker, outcome).Inc()
	WorkflowDuration.WithLabelValues(ticker).Observe(elapsed.Seconds())
}

// ObserveLocatorAttempt records one locator iteration.
func ObserveLocatorAttempt(ticker, result string) {
	LocatorAttempts.WithLabelValues(ticker, result).Inc()
}

// ObserveLLMRequest records one completion request.
func ObserveLLMRequest(provider string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	LLMRequests.WithLabelValues(provider, status).Inc()
}

// Server exposes /metrics over HTTP.
type Server struct {
	srv    *http.Server
	logger arbor.ILogger
}

// NewServer creates a metrics server bound to address.
func NewServer(address string, logger arbor.ILogger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		srv: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("address", s.srv.Addr).Msg("Metrics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
