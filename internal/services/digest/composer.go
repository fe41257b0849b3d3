package digest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ternarybob/earningsear/internal/models"
)

// Directional glyphs.
const (
	Up      = "🟢"
	Down    = "🔴"
	Neutral = "🟡"
)

var sentimentGlyphs = map[string]string{
	"bullish": Up,
	"bearish": Down,
	"neutral": Neutral,
}

// Compare returns the glyph for actual against historical. Missing values
// compare as zero.
func Compare(actual, historical models.MetricValue) string {
	a, h := actual.Float(), historical.Float()
	switch {
	case a > h:
		return Up
	case a < h:
		return Down
	default:
		return Neutral
	}
}

// Compose renders the digest for one release. It refuses soft-failed
// payloads and payloads with no metric groups at all.
func Compose(extracted *models.ExtractedMetrics, historical map[string]models.MetricValue, ticker string, quarter int) (models.DigestMessage, error) {
	if extracted == nil {
		return "", fmt.Errorf("%w: no metrics", models.ErrMetricParse)
	}
	if extracted.Error != "" {
		return "", fmt.Errorf("%w: %s", models.ErrMetricParse, extracted.Error)
	}
	if extracted.IsEmpty() {
		return "", models.ErrWrongDocument
	}

	m := extracted.Metrics
	var lines []string

	for _, entry := range m.CurrentQuarter {
		lines = append(lines, metricLine("", strings.ReplaceAll(entry.Key, "billion", ""), entry, historical["current_"+entry.Key]))
	}

	lines = append(lines, "\n")

	for _, entry := range m.FullYear {
		lines = append(lines, metricLine("Full Year ", strings.ReplaceAll(entry.Key, "_billion", ""), entry, historical["full_year_"+entry.Key]))
	}

	forward := make([]string, 0, len(m.ForwardGuidance))
	for _, period := range m.ForwardGuidance {
		entries := make([]string, 0, len(period.Entries))
		for _, e := range period.Entries {
			entries = append(entries, guidanceLine(e))
		}
		forward = append(forward, "\n"+Title(strings.ReplaceAll(period.Name, "_", " "))+":\n"+strings.Join(entries, "\n"))
	}

	sentiment := make([]string, 0, len(extracted.SentimentSnippets))
	for _, s := range extracted.SentimentSnippets {
		glyph, ok := sentimentGlyphs[strings.ToLower(s.Classification)]
		if !ok {
			glyph = Neutral
		}
		sentiment = append(sentiment, "- "+s.Snippet+" "+glyph)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### $%s Q%d Earnings Analysis\n", strings.ToUpper(ticker), quarter)
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n### Forward Guidance\n")
	b.WriteString(strings.Join(forward, "\n"))
	b.WriteString("\n\n### Sentiment Insights\n")
	b.WriteString(strings.Join(sentiment, "\n"))

	return models.NewDigestMessage(b.String()), nil
}

func metricLine(prefix, label string, entry models.MetricEntry, historical models.MetricValue) string {
	unit := ""
	if strings.Contains(entry.Key, "billion") {
		unit = "B"
	}
	return fmt.Sprintf("%s%s: $%s%s vs %s%s %s",
		prefix,
		Title(strings.ReplaceAll(label, "_", " ")),
		entry.Value.Display(), unit,
		historical.Display(), unit,
		Compare(entry.Value, historical))
}

func guidanceLine(e models.GuidanceEntry) string {
	label := Title(strings.ReplaceAll(e.Key, "_", " "))
	if low, high, ok := Range(e.Value); ok {
		return fmt.Sprintf("%s: %sB - %sB", label, strconv.FormatFloat(low, 'f', 2, 64), strconv.FormatFloat(high, 'f', 2, 64))
	}
	return label + ": " + displayRaw(e.Value)
}

// Range interprets a forward-guidance value as a low/high pair. It accepts
// {low, high} with both bounds non-zero, a list of non-zero numbers (a single
// element is used for both bounds) and a bare non-zero number. Zero values
// are displayed as they are.
func Range(raw json.RawMessage) (low, high float64, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, 0, false
	}

	switch trimmed[0] {
	case '{':
		var obj struct {
			Low  models.MetricValue `json:"low"`
			High models.MetricValue `json:"high"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return 0, 0, false
		}
		low, high = obj.Low.Float(), obj.High.Float()
		return low, high, low != 0 && high != 0

	case '[':
		var items []models.MetricValue
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return 0, 0, false
		}
		for _, item := range items {
			if item.Float() == 0 {
				return 0, 0, false
			}
		}
		low, high = items[0].Float(), items[0].Float()
		if len(items) > 1 {
			high = items[1].Float()
		}
		return low, high, true

	case '"', 'n', 't', 'f':
		return 0, 0, false
	}

	v, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return 0, 0, false
	}
	return v, v, v != 0
}

// displayRaw prints strings bare and anything else as compact JSON.
func displayRaw(raw json.RawMessage) string {
	v := models.MetricValue(raw)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return v.Display()
}

// Title upper-cases a letter that follows a non-letter and lower-cases every
// other letter, so "q4 revenue " becomes "Q4 Revenue " and "2nd" becomes "2Nd".
func Title(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
