package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/services/llm"
)

const validResponse = `{
  "metrics": {
    "current_quarter": {"revenue_billion": 1.93, "eps": 0.65, "gross_margin": null},
    "full_year": {"revenue_billion": 7.0},
    "forward_guidance": {"next_quarter": {"revenue_billion": {"low": 1.9, "high": 2.0}}}
  },
  "sentiment_snippets": [{"snippet": "Record quarter", "classification": "positive"}]
}`

type reply struct {
	text string
	err  error
}

type scriptedProvider struct {
	replies []reply
	reqs    []interfaces.ChatRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	i := len(p.reqs)
	p.reqs = append(p.reqs, req)
	r := p.replies[len(p.replies)-1]
	if i < len(p.replies) {
		r = p.replies[i]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &interfaces.ChatResponse{Text: r.text, Provider: "scripted", Model: req.Model}, nil
}

type staticSource struct {
	provider interfaces.ChatProvider
}

func (s staticSource) ForSite(ctx context.Context, site models.WorkflowConfig) (interfaces.ChatProvider, string, error) {
	return s.provider, "test-model", nil
}

func newTestClient(t *testing.T, p interfaces.ChatProvider) (*Client, *[]time.Duration) {
	schema, err := LoadSchema("")
	require.NoError(t, err)

	c := NewClient(staticSource{p}, common.LLMConfig{MaxAttempts: 3, InitialBackoff: "1s"}, schema, arbor.NewLogger())
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps
}

func localSite() models.WorkflowConfig {
	return models.WorkflowConfig{
		Ticker:          "ANET",
		Quarter:         4,
		Year:            2024,
		DeploymentType:  models.DeploymentLocal,
		LLMInstructions: models.LLMInstructions{System: "Extract revenue.", Temperature: 0.7},
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	got := BuildSystemPrompt("ANET", 4, 2024, "Extract revenue.")
	assert.Equal(t,
		"Follow the below steps unless the provided information is empty or does not contain the earnings press release for ANET for 4 2024\n"+
			"DO NOT MAKE UP METRICS, ONLY USE NUMBERS PROVIDED IN THE CONTENT OF THE NEXT MESSAGE\n"+
			"Extract revenue.",
		got)
}

func TestExtractSuccess(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: validResponse}}}
	c, sleeps := newTestClient(t, p)

	got, err := c.Extract(context.Background(), localSite(), "release text")
	require.NoError(t, err)
	assert.Empty(t, got.Error)
	assert.Empty(t, *sleeps)

	require.Len(t, got.Metrics.CurrentQuarter, 3)
	assert.Equal(t, "revenue_billion", got.Metrics.CurrentQuarter[0].Key)
	assert.Equal(t, "eps", got.Metrics.CurrentQuarter[1].Key)
	assert.True(t, got.Metrics.CurrentQuarter[2].Value.IsNull())
	require.Len(t, got.SentimentSnippets, 1)

	require.Len(t, p.reqs, 1)
	req := p.reqs[0]
	assert.Equal(t, "release text", req.User)
	assert.Equal(t, "test-model", req.Model)
	assert.True(t, req.JSON)
	assert.Equal(t, 0.0, req.Temperature)
	assert.True(t, strings.HasSuffix(req.System, "\nExtract revenue."))
}

func TestExtractRetriesThenSucceeds(t *testing.T) {
	badRequest := &llm.StatusError{Provider: "groq", StatusCode: 400, Body: "json_validate_failed"}
	p := &scriptedProvider{replies: []reply{{text: "[1, 2]"}, {err: badRequest}, {text: validResponse}}}
	c, sleeps := newTestClient(t, p)

	got, err := c.Extract(context.Background(), localSite(), "release text")
	require.NoError(t, err)
	assert.Empty(t, got.Error)
	assert.Len(t, p.reqs, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestExtractExhaustedIsSoftError(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "truncated", text: `{"metrics": {"current_quarter": {"revenue_billion": 1.9`},
		{name: "prose", text: "Revenue: 1.93 billion"},
		{name: "fenced array", text: "```json\n[\"revenue_billion\", 1.93]\n```"},
		{name: "no metrics key", text: `{"Revenue": "1.93 billion"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{replies: []reply{{text: tt.text}}}
			c, sleeps := newTestClient(t, p)

			got, err := c.Extract(context.Background(), localSite(), "release text")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got.Error, ParseFailurePrefix), got.Error)
			assert.True(t, got.IsEmpty())
			assert.Len(t, p.reqs, 3)
			assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
		})
	}
}

func TestExtractHardFailure(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{err: &llm.StatusError{Provider: "groq", StatusCode: 500}}}}
	c, _ := newTestClient(t, p)

	_, err := c.Extract(context.Background(), localSite(), "release text")
	require.Error(t, err)
	assert.Len(t, p.reqs, 1)
}

func TestExtractRateLimitedIsNotRetried(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{err: &llm.StatusError{Provider: "groq", StatusCode: 429}}}}
	c, sleeps := newTestClient(t, p)

	_, err := c.Extract(context.Background(), localSite(), "release text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited by scripted")
	assert.Len(t, p.reqs, 1)
	assert.Empty(t, *sleeps)
}

func TestExtractHostedDecodesInstructions(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: validResponse}}}
	c, _ := newTestClient(t, p)

	site := localSite()
	site.DeploymentType = models.DeploymentHosted
	site.LLMInstructions.System = base64.StdEncoding.EncodeToString([]byte("Decoded steps."))
	site.LLMInstructions.Temperature = 1.9

	_, err := c.Extract(context.Background(), site, "release text")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.reqs[0].System, "\nDecoded steps."))
	assert.Equal(t, 1.0, p.reqs[0].Temperature)

	site.LLMInstructions.System = "not base64!"
	_, err = c.Extract(context.Background(), site, "release text")
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	c, _ := newTestClient(t, &scriptedProvider{})

	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{name: "strict", text: validResponse},
		{name: "fenced", text: "```json\n" + validResponse + "\n```"},
		{name: "trailing comma", text: `{"metrics": {"current_quarter": {"eps": 0.65,}}}`},
		{name: "empty metrics", text: `{"metrics": {}}`},
		{name: "null metrics", text: `{"metrics": null}`},
		{name: "empty object", text: `{}`, wantErr: true},
		{name: "array", text: `[1, 2]`, wantErr: true},
		{name: "prose", text: "Revenue: 1.93 billion", wantErr: true},
		{name: "truncated", text: `{"metrics": {"current_quarter": {}`, wantErr: true},
		{name: "trailing text", text: `{"metrics": {}} thanks`, wantErr: true},
		{name: "metrics wrong type", text: `{"metrics": "none"}`, wantErr: true},
		{name: "snippets wrong type", text: `{"sentiment_snippets": "great"}`, wantErr: true},
		{name: "empty", text: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Parse(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.Raw)
		})
	}
}

func TestExtractCancelledDuringBackoff(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: ""}}}
	c, _ := newTestClient(t, p)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := c.Extract(context.Background(), localSite(), "release text")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, p.reqs, 1)
}
