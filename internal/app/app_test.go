package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/workflow"
)

const anetSite = `{
  "ticker": "ANET",
  "quarter": 3,
  "year": 2024,
  "base_url": "https://investors.arista.com/Financials/Quarterly-Results/default.aspx",
  "extraction_method": "pdf",
  "verify_keywords": {"requires_year": true, "requires_quarter": true, "quarter_with_q": true, "fixed_terms": ["earnings"]},
  "llm_instructions": {"system": "Extract the metrics", "temperature": 0},
  "deployment_type": "local"
}`

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")

	a, err := New(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	a.getenv = func(string) string { return "" }
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestLoadSiteFromStore(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.StorageManager.SiteConfigStorage().PutSiteConfig(ctx, &models.SiteConfigRecord{
		Ticker: "anet",
		Config: json.RawMessage(anetSite),
	}))

	site, err := a.LoadSite(ctx, "", "ANET", 4, 0)
	require.NoError(t, err)
	assert.Equal(t, "ANET", site.Ticker)
	assert.Equal(t, 4, site.Quarter.Int())
	assert.Equal(t, 2024, site.Year.Int())
	assert.Equal(t, models.ExtractionPDF, site.ExtractionMethod)
	assert.True(t, site.IsLocal())

	_, err = a.LoadSite(ctx, "", "NVDA", 0, 0)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRunSiteRejectsUnknownEngine(t *testing.T) {
	a := newTestApp(t)
	a.Config.Browser.FallbackEngine = "lynx"

	site, err := common.LoadWorkflowConfig([]byte(anetSite), a.getenv)
	require.NoError(t, err)

	result := a.RunSite(context.Background(), site)
	assert.Equal(t, workflow.StateFailed, result.State)
	assert.Contains(t, result.Error, "unknown browser engine: lynx")
}

func TestScheduleJobs(t *testing.T) {
	a := newTestApp(t)
	assert.ErrorContains(t, a.ScheduleJobs(), "no [[scheduler.jobs]] configured")

	a.Config.Scheduler.Jobs = []common.ScheduleJob{
		{Name: "anet-q4", Schedule: "0 */5 21-23 * * *", Ticker: "ANET", Quarter: 4, Year: 2024},
		{Ticker: "NVDA", Schedule: "0 0 * * * *"},
	}
	require.NoError(t, a.ScheduleJobs())

	statuses := a.SchedulerService.GetAllJobStatuses()
	assert.Contains(t, statuses, "anet-q4")
	assert.Contains(t, statuses, "NVDA")
}

func TestScheduleJobsRejectsBadCron(t *testing.T) {
	a := newTestApp(t)
	a.Config.Scheduler.Jobs = []common.ScheduleJob{{Name: "bad", Schedule: "every monday"}}
	assert.ErrorContains(t, a.ScheduleJobs(), "invalid schedule")
}
