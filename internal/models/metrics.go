package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ExtractedMetrics is the structured LLM output for one release.
// Error is set instead of Metrics when the model never produced parseable JSON.
type ExtractedMetrics struct {
	Metrics           MetricsBlock       `json:"metrics"`
	SentimentSnippets []SentimentSnippet `json:"sentiment_snippets"`
	Error             string             `json:"error,omitempty"`

	// Raw is the response body as the model returned it (after repair).
	Raw json.RawMessage `json:"-"`
}

// MetricsBlock groups the figures by reporting period.
type MetricsBlock struct {
	CurrentQuarter  MetricGroup     `json:"current_quarter"`
	FullYear        MetricGroup     `json:"full_year"`
	ForwardGuidance ForwardGuidance `json:"forward_guidance"`
}

// SentimentSnippet is a quoted line from the release with its tone.
type SentimentSnippet struct {
	Snippet        string `json:"snippet"`
	Classification string `json:"classification"`
}

// IsEmpty reports whether none of the four metric groups carry data.
func (m ExtractedMetrics) IsEmpty() bool {
	return len(m.Metrics.CurrentQuarter) == 0 &&
		len(m.Metrics.FullYear) == 0 &&
		len(m.Metrics.ForwardGuidance.Period("next_quarter")) == 0 &&
		len(m.Metrics.ForwardGuidance.Period("fiscal_year")) == 0
}

// MetricEntry is one key/value pair in response order.
type MetricEntry struct {
	Key   string
	Value MetricValue
}

// MetricGroup is a JSON object of nullable figures that keeps key order.
type MetricGroup []MetricEntry

func (g *MetricGroup) UnmarshalJSON(data []byte) error {
	*g = nil
	return decodeOrdered(data, func(key string, raw json.RawMessage) error {
		*g = append(*g, MetricEntry{Key: key, Value: MetricValue(raw)})
		return nil
	})
}

func (g MetricGroup) MarshalJSON() ([]byte, error) {
	return encodeOrdered(len(g), func(i int) (string, json.RawMessage) {
		return g[i].Key, g[i].Value.raw()
	})
}

// GuidanceEntry is one forward-guidance figure. Value is kept raw because
// models return ranges as objects, pairs or single numbers.
type GuidanceEntry struct {
	Key   string
	Value json.RawMessage
}

// GuidancePeriod is a named forecast window such as next_quarter.
type GuidancePeriod struct {
	Name    string
	Entries []GuidanceEntry
}

// ForwardGuidance keeps periods in response order.
type ForwardGuidance []GuidancePeriod

// Period returns the entries for name, or nil.
func (f ForwardGuidance) Period(name string) []GuidanceEntry {
	for _, p := range f {
		if p.Name == name {
			return p.Entries
		}
	}
	return nil
}

func (f *ForwardGuidance) UnmarshalJSON(data []byte) error {
	*f = nil
	return decodeOrdered(data, func(name string, raw json.RawMessage) error {
		period := GuidancePeriod{Name: name}
		err := decodeOrdered(raw, func(key string, value json.RawMessage) error {
			period.Entries = append(period.Entries, GuidanceEntry{Key: key, Value: value})
			return nil
		})
		if err != nil {
			return fmt.Errorf("forward_guidance.%s: %w", name, err)
		}
		*f = append(*f, period)
		return nil
	})
}

func (f ForwardGuidance) MarshalJSON() ([]byte, error) {
	return encodeOrdered(len(f), func(i int) (string, json.RawMessage) {
		inner, _ := encodeOrdered(len(f[i].Entries), func(j int) (string, json.RawMessage) {
			return f[i].Entries[j].Key, f[i].Entries[j].Value
		})
		return f[i].Name, inner
	})
}

// MetricValue is a raw JSON scalar that may be null, a number or a string.
type MetricValue json.RawMessage

func (v *MetricValue) UnmarshalJSON(data []byte) error {
	*v = append((*v)[:0], data...)
	return nil
}

func (v MetricValue) MarshalJSON() ([]byte, error) {
	return v.raw(), nil
}

func (v MetricValue) raw() json.RawMessage {
	if len(bytes.TrimSpace(v)) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(v)
}

// IsNull reports a missing or JSON null value.
func (v MetricValue) IsNull() bool {
	s := strings.TrimSpace(string(v))
	return s == "" || s == "null"
}

// Float returns the numeric value. Null and non-numeric values compare as 0.
func (v MetricValue) Float() float64 {
	s := strings.TrimSpace(string(v))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(v, &str); err != nil {
			return 0
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Display renders the value the way the digest prints figures:
// None for null, integers without a decimal point, floats with at least one.
func (v MetricValue) Display() string {
	s := strings.TrimSpace(string(v))
	switch {
	case s == "" || s == "null":
		return "None"
	case s == "true":
		return "True"
	case s == "false":
		return "False"
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(v, &str); err != nil {
			return s
		}
		return str
	case strings.HasPrefix(s, "{") || strings.HasPrefix(s, "["):
		return s
	}
	return FormatNumber(s)
}

// FormatNumber renders a JSON number literal: integer literals stay integral,
// anything with a fraction or exponent prints as a float with at least one
// decimal. Floats below 1e-4 or from 1e16 up print in exponent form, e.g. 1e+16.
func FormatNumber(literal string) string {
	if !strings.ContainsAny(literal, ".eE") {
		if i, err := strconv.ParseInt(literal, 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return literal
	}
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return literal
	}
	if f != 0 {
		if abs := math.Abs(f); abs < 1e-4 || abs >= 1e16 {
			return strconv.FormatFloat(f, 'e', -1, 64)
		}
	}
	out := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

// decodeOrdered walks a JSON object calling fn per member in document order.
// null decodes as an empty object.
func decodeOrdered(data []byte, fn func(key string, raw json.RawMessage) error) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}

func encodeOrdered(n int, member func(i int) (string, json.RawMessage)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, value := member(i)
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if len(bytes.TrimSpace(value)) == 0 {
			value = json.RawMessage("null")
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
