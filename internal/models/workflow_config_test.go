package models

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() WorkflowConfig {
	return WorkflowConfig{
		Ticker:           "ANET",
		Quarter:          4,
		Year:             2024,
		BaseURL:          "https://investors.arista.com/",
		ExtractionMethod: ExtractionPDF,
	}.WithDefaults()
}

func TestWithDefaults(t *testing.T) {
	cfg := WorkflowConfig{Ticker: "ANET", BrowserType: "Firefox"}.WithDefaults()

	assert.Equal(t, DefaultSelector, cfg.PrimarySelector())
	assert.Equal(t, ExtractionHTML, cfg.ExtractionMethod)
	assert.Equal(t, DefaultContentSelector, cfg.PageContentSelector)
	assert.Equal(t, ContentFormatText, cfg.ContentFormat)
	assert.Equal(t, BrowserChromium, cfg.BrowserType)
	assert.Equal(t, DeploymentHosted, cfg.DeploymentType)
}

func TestPrimarySelector(t *testing.T) {
	cfg := WorkflowConfig{Selectors: []string{"a.release", "a.pdf"}}
	assert.Equal(t, "a.release, a.pdf", cfg.PrimarySelector())

	cfg.Selector = "div a"
	assert.Equal(t, "div a", cfg.PrimarySelector())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WorkflowConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *WorkflowConfig) {}},
		{name: "quarter zero", mutate: func(c *WorkflowConfig) { c.Quarter = 0 }, wantErr: true},
		{name: "quarter five", mutate: func(c *WorkflowConfig) { c.Quarter = 5 }, wantErr: true},
		{name: "two digit year", mutate: func(c *WorkflowConfig) { c.Year = 24 }, wantErr: true},
		{name: "unknown method", mutate: func(c *WorkflowConfig) { c.ExtractionMethod = "docx" }, wantErr: true},
		{name: "missing ticker", mutate: func(c *WorkflowConfig) { c.Ticker = "" }, wantErr: true},
		{name: "bad base url", mutate: func(c *WorkflowConfig) { c.BaseURL = "not a url" }, wantErr: true},
		{name: "unknown browser", mutate: func(c *WorkflowConfig) { c.BrowserType = "webkit" }, wantErr: true},
		{name: "bad historical json", mutate: func(c *WorkflowConfig) { c.JSONData = HistoricalBlob(`"{not json"`) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFlexIntAcceptsStringsAndFloats(t *testing.T) {
	var cfg WorkflowConfig
	err := json.Unmarshal([]byte(`{"quarter": "4", "year": 2024.0, "llm_instructions": {"temperature": "0.7"}}`), &cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Quarter.Int())
	assert.Equal(t, 2024, cfg.Year.Int())
	assert.InDelta(t, 0.7, float64(cfg.LLMInstructions.Temperature), 1e-9)
}

func TestFlexIntRejectsWords(t *testing.T) {
	var cfg WorkflowConfig
	err := json.Unmarshal([]byte(`{"quarter": "fourth"}`), &cfg)
	assert.Error(t, err)
}

func TestInstructions(t *testing.T) {
	prompt := "Extract eps and revenue."
	encoded := base64.StdEncoding.EncodeToString([]byte(prompt))

	hosted := validConfig()
	hosted.LLMInstructions.System = encoded
	got, err := hosted.Instructions()
	require.NoError(t, err)
	assert.Equal(t, prompt, got)

	local := validConfig()
	local.DeploymentType = DeploymentLocal
	local.LLMInstructions.System = prompt
	got, err = local.Instructions()
	require.NoError(t, err)
	assert.Equal(t, prompt, got)

	hosted.LLMInstructions.System = "not base64!"
	_, err = hosted.Instructions()
	assert.Error(t, err)
}

func TestRedactedDropsSecretsAndDecodesInstructions(t *testing.T) {
	cfg := validConfig()
	cfg.GroqAPIKey = "gsk_secret"
	cfg.DiscordWebhookURL = "https://discord.com/api/webhooks/1/abc"
	cfg.LLMInstructions.System = base64.StdEncoding.EncodeToString([]byte("prompt text"))

	var out map[string]any
	require.NoError(t, json.Unmarshal(cfg.Redacted(), &out))

	assert.NotContains(t, out, "groq_api_key")
	assert.NotContains(t, out, "discord_webhook_url")
	assert.Equal(t, "prompt text", out["llm_instructions"].(map[string]any)["system"])
}

func TestHistoricalValues(t *testing.T) {
	tests := []struct {
		name string
		blob string
		key  string
		want float64
		null bool
	}{
		{name: "object", blob: `{"current_eps": 0.65}`, key: "current_eps", want: 0.65},
		{name: "string encoded", blob: `"{\"current_eps\": 0.65}"`, key: "current_eps", want: 0.65},
		{name: "null member", blob: `{"current_eps": null}`, key: "current_eps", null: true},
		{name: "missing", blob: `{}`, key: "current_eps", null: true},
		{name: "empty string", blob: `""`, key: "current_eps", null: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := HistoricalBlob(tt.blob).Values()
			require.NoError(t, err)
			v := values[tt.key]
			assert.Equal(t, tt.null, v.IsNull())
			assert.InDelta(t, tt.want, v.Float(), 1e-9)
		})
	}
}
