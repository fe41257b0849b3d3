package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/earningsear/internal/models"
)

func envMap(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestLoadWorkflowConfigMergesEnvAndSite(t *testing.T) {
	env := envMap(map[string]string{
		EnvQuarter:        "4",
		EnvYear:           "2024",
		EnvTicker:         "ANET",
		EnvDeploymentType: "local",
		EnvGroqAPIKey:     "gsk_env",
	})
	site := []byte(`{
		"base_url": "https://investors.arista.com/",
		"extraction_method": "pdf",
		"verify_keywords": {"requires_year": true, "requires_quarter": true, "quarter_with_q": true, "fixed_terms": ["results"]},
		"json_data": "{\"current_eps\": 0.6}"
	}`)

	cfg, err := LoadWorkflowConfig(site, env)
	require.NoError(t, err)

	assert.Equal(t, "ANET", cfg.Ticker)
	assert.Equal(t, 4, cfg.Quarter.Int())
	assert.Equal(t, 2024, cfg.Year.Int())
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "gsk_env", cfg.GroqAPIKey)
	assert.Equal(t, models.ExtractionPDF, cfg.ExtractionMethod)
	assert.Equal(t, "body", cfg.PageContentSelector)
	assert.Equal(t, []string{"results"}, cfg.VerifyKeywords.FixedTerms)
}

func TestLoadWorkflowConfigSiteOverridesEnv(t *testing.T) {
	env := envMap(map[string]string{EnvQuarter: "1", EnvYear: "2023", EnvTicker: "ANET"})
	site := []byte(`{"base_url": "https://example.com", "quarter": 3, "year": "2025"}`)

	cfg, err := LoadWorkflowConfig(site, env)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Quarter.Int())
	assert.Equal(t, 2025, cfg.Year.Int())
}

func TestLoadWorkflowConfigReadsSiteFromEnv(t *testing.T) {
	env := envMap(map[string]string{
		EnvQuarter:    "2",
		EnvYear:       "2024",
		EnvSiteConfig: `{"ticker": "RIVN", "base_url": "https://rivian.com/investors"}`,
	})

	cfg, err := LoadWorkflowConfig(nil, env)
	require.NoError(t, err)
	assert.Equal(t, "RIVN", cfg.Ticker)
	assert.Equal(t, models.DeploymentHosted, cfg.DeploymentType)
}

func TestLoadWorkflowConfigAcceptsHjson(t *testing.T) {
	env := envMap(map[string]string{EnvQuarter: "2", EnvYear: "2024"})
	site := []byte(`{
		# investor relations landing page
		ticker: RIVN
		base_url: "https://rivian.com/investors"
		selectors: ["a.release",],
	}`)

	cfg, err := LoadWorkflowConfig(site, env)
	require.NoError(t, err)
	assert.Equal(t, "RIVN", cfg.Ticker)
	assert.Equal(t, "a.release", cfg.PrimarySelector())
}

func TestLoadWorkflowConfigValidation(t *testing.T) {
	env := envMap(map[string]string{EnvQuarter: "7", EnvYear: "2024", EnvTicker: "ANET"})
	_, err := LoadWorkflowConfig([]byte(`{"base_url": "https://example.com"}`), env)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidConfig))
}
