package digest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/earningsear/internal/models"
)

func decodeMetrics(t *testing.T, doc string) *models.ExtractedMetrics {
	t.Helper()
	var m models.ExtractedMetrics
	require.NoError(t, json.Unmarshal([]byte(doc), &m))
	return &m
}

func historical(t *testing.T, doc string) map[string]models.MetricValue {
	t.Helper()
	values, err := models.HistoricalBlob(doc).Values()
	require.NoError(t, err)
	return values
}

func TestComposeFullDigest(t *testing.T) {
	extracted := decodeMetrics(t, `{
		"metrics": {
			"current_quarter": {"revenue_billion": 1.93, "eps": 0.65, "gross_margin": null},
			"full_year": {"revenue_billion": 7.0},
			"forward_guidance": {
				"next_quarter": {"revenue_billion": {"low": 1.9, "high": 2.0}, "gross_margin": "63%"},
				"fiscal_year": {"revenue_billion": 42.0}
			}
		},
		"sentiment_snippets": [
			{"snippet": "Record quarter", "classification": "Bullish"},
			{"snippet": "Supply constraints", "classification": "bearish"},
			{"snippet": "Steady", "classification": "mixed"}
		]
	}`)
	hist := historical(t, `"{\"current_revenue_billion\": 1.9, \"current_eps\": 0.7, \"full_year_revenue_billion\": 7.0}"`)

	got, err := Compose(extracted, hist, "anet", 4)
	require.NoError(t, err)

	want := "### $ANET Q4 Earnings Analysis\n" +
		"Revenue : $1.93B vs 1.9B 🟢\n" +
		"Eps: $0.65 vs 0.7 🔴\n" +
		"Gross Margin: $None vs None 🟡\n" +
		"\n\n" +
		"Full Year Revenue: $7.0B vs 7.0B 🟡\n\n" +
		"### Forward Guidance\n" +
		"\nNext Quarter:\nRevenue Billion: 1.90B - 2.00B\nGross Margin: 63%\n" +
		"\nFiscal Year:\nRevenue Billion: 42.00B - 42.00B\n\n" +
		"### Sentiment Insights\n" +
		"- Record quarter 🟢\n- Supply constraints 🔴\n- Steady 🟡"
	assert.Equal(t, want, got.String())
}

func TestComposeRefusals(t *testing.T) {
	_, err := Compose(&models.ExtractedMetrics{Error: "Failed to parse metrics from GPT response after retries: boom"}, nil, "ANET", 4)
	assert.ErrorIs(t, err, models.ErrMetricParse)

	_, err = Compose(nil, nil, "ANET", 4)
	assert.ErrorIs(t, err, models.ErrMetricParse)

	empty := decodeMetrics(t, `{"metrics": {"current_quarter": {}, "full_year": {}, "forward_guidance": {"next_quarter": {}, "fiscal_year": {}}}, "sentiment_snippets": [{"snippet": "x", "classification": "bullish"}]}`)
	_, err = Compose(empty, nil, "ANET", 4)
	assert.ErrorIs(t, err, models.ErrWrongDocument)
}

func TestComposeGuidanceOnly(t *testing.T) {
	extracted := decodeMetrics(t, `{"metrics": {"forward_guidance": {"next_quarter": {"revenue_billion": [2.1]}}}}`)

	got, err := Compose(extracted, nil, "ANET", 1)
	require.NoError(t, err)
	assert.Contains(t, got.String(), "Revenue Billion: 2.10B - 2.10B")
	assert.True(t, strings.HasPrefix(got.String(), "### $ANET Q1 Earnings Analysis\n"))
}

func TestComposeTruncates(t *testing.T) {
	doc := map[string]interface{}{
		"metrics": map[string]interface{}{
			"current_quarter": map[string]interface{}{"eps": 1.0},
		},
		"sentiment_snippets": []map[string]string{
			{"snippet": strings.Repeat("é", 3000), "classification": "neutral"},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	got, err := Compose(decodeMetrics(t, string(data)), nil, "ANET", 4)
	require.NoError(t, err)
	assert.Equal(t, models.DigestLimit, got.Len())
	assert.Equal(t, got, models.NewDigestMessage(got.String()))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		actual, hist string
		want         string
	}{
		{"2", "1", Up},
		{"1", "2", Down},
		{"1.5", "1.5", Neutral},
		{"null", "null", Neutral},
		{"1", "", Up},
		{"", "1", Down},
		{"-1", "null", Down},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(models.MetricValue(tt.actual), models.MetricValue(tt.hist)), "%s vs %s", tt.actual, tt.hist)
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		raw    string
		low    float64
		high   float64
		wantOK bool
	}{
		{`42.0`, 42, 42, true},
		{`0`, 0, 0, false},
		{`0.0`, 0, 0, false},
		{`{"low": 10, "high": 20}`, 10, 20, true},
		{`{"low": 0, "high": 20}`, 0, 20, false},
		{`[1.5, 2.5]`, 1.5, 2.5, true},
		{`[3]`, 3, 3, true},
		{`[0, 2]`, 0, 0, false},
		{`[]`, 0, 0, false},
		{`"mid single digits"`, 0, 0, false},
		{`null`, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			low, high, ok := Range(json.RawMessage(tt.raw))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.low, low)
				assert.Equal(t, tt.high, high)
			}
		})
	}

	assert.Equal(t, "Revenue: 42.00B - 42.00B", guidanceLine(models.GuidanceEntry{Key: "revenue", Value: json.RawMessage(`42.0`)}))
	assert.Equal(t, "Revenue: 10.00B - 20.00B", guidanceLine(models.GuidanceEntry{Key: "revenue", Value: json.RawMessage(`{"low": 10, "high": 20}`)}))
	assert.Equal(t, `Margin: {"low":0,"high":0.6}`, guidanceLine(models.GuidanceEntry{Key: "margin", Value: json.RawMessage(`{"low": 0, "high": 0.6}`)}))
	assert.Equal(t, "Revenue: 0.0", guidanceLine(models.GuidanceEntry{Key: "revenue", Value: json.RawMessage(`0.0`)}))
	assert.Equal(t, "Revenue: [0,2]", guidanceLine(models.GuidanceEntry{Key: "revenue", Value: json.RawMessage(`[0, 2]`)}))
}

func TestTitle(t *testing.T) {
	tests := map[string]string{
		"revenue ":     "Revenue ",
		"gross margin": "Gross Margin",
		"NON GAAP eps": "Non Gaap Eps",
		"q4 revenue":   "Q4 Revenue",
		"2nd quarter":  "2Nd Quarter",
		"adj_ebitda":   "Adj_Ebitda",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Title(in), in)
	}
}
