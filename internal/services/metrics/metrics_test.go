package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestObserveCounters(t *testing.T) {
	before := testutil.ToFloat64(LocatorAttempts.WithLabelValues("TEST", AttemptNoScore))
	ObserveLocatorAttempt("TEST", AttemptNoScore)
	ObserveLocatorAttempt("TEST", AttemptNoScore)
	assert.Equal(t, before+2, testutil.ToFloat64(LocatorAttempts.WithLabelValues("TEST", AttemptNoScore)))

	okBefore := testutil.ToFloat64(LLMRequests.WithLabelValues("groq", "ok"))
	errBefore := testutil.ToFloat64(LLMRequests.WithLabelValues("groq", "error"))
	ObserveLLMRequest("groq", nil)
	ObserveLLMRequest("groq", errors.New("boom"))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(LLMRequests.WithLabelValues("groq", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(LLMRequests.WithLabelValues("groq", "error")))

	runsBefore := testutil.ToFloat64(WorkflowRuns.WithLabelValues("TEST", "done"))
	ObserveRun("TEST", "done", 3*time.Second)
	assert.Equal(t, runsBefore+1, testutil.ToFloat64(WorkflowRuns.WithLabelValues("TEST", "done")))
}

func TestServerHandlerExposesMetrics(t *testing.T) {
	ObserveLocatorAttempt("EXPOSE", AttemptFound)

	srv := NewServer(":0", arbor.NewLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `earningsear_locator_attempts_total{result="found",ticker="EXPOSE"}`)
}
