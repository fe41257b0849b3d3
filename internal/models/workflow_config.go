package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ExtractionMethod selects how the located release is read.
type ExtractionMethod string

const (
	ExtractionPDF  ExtractionMethod = "pdf"
	ExtractionHTML ExtractionMethod = "html"
)

// DeploymentMode controls how secrets and instruction prompts are supplied.
type DeploymentMode string

const (
	DeploymentLocal  DeploymentMode = "local"
	DeploymentHosted DeploymentMode = "hosted"
)

// Renderer engines understood by the renderer factory.
const (
	BrowserChromium = "chromium"
	BrowserStatic   = "static"
)

// Content formats for the HTML extraction branch.
const (
	ContentFormatText     = "text"
	ContentFormatMarkdown = "markdown"
)

const (
	DefaultSelector        = "a"
	DefaultContentSelector = "body"
)

// VerifyKeywords describes which derived terms a candidate href is scored against.
type VerifyKeywords struct {
	RequiresYear    bool     `json:"requires_year"`
	YearAsTwoDigits bool     `json:"year_as_two_digits"`
	RequiresQuarter bool     `json:"requires_quarter"`
	QuarterAsString bool     `json:"quarter_as_string"`
	QuarterWithQ    bool     `json:"quarter_with_q"`
	FixedTerms      []string `json:"fixed_terms"`
}

// URLKeywords describes how link_template placeholders are filled.
type URLKeywords struct {
	RequiresYear        bool `json:"requires_year"`
	RequiresCurrentYear bool `json:"requires_current_year"`
	RequiresQuarter     bool `json:"requires_quarter"`
	QuarterAsString     bool `json:"quarter_as_string"`
	QuarterIsTitleCase  bool `json:"quarter_is_title_case"`
	QuarterWithQ        bool `json:"quarter_with_q"`
}

// LLMInstructions is the task prompt sent after the guardrail preamble.
type LLMInstructions struct {
	System      string    `json:"system"`
	Temperature FlexFloat `json:"temperature"`
}

// WorkflowConfig is the per-ticker site configuration for one run.
// Treat it as a value: WithDefaults returns a copy and nothing mutates it mid-run.
type WorkflowConfig struct {
	Ticker  string  `json:"ticker" validate:"required"`
	Quarter FlexInt `json:"quarter" validate:"min=1,max=4"`
	Year    FlexInt `json:"year" validate:"min=1000,max=9999"`

	BaseURL             string           `json:"base_url" validate:"required,url"`
	Selector            string           `json:"selector,omitempty"`
	Selectors           []string         `json:"selectors,omitempty"`
	ExtractionMethod    ExtractionMethod `json:"extraction_method" validate:"oneof=pdf html"`
	PageContentSelector string           `json:"page_content_selector,omitempty"`
	ContentFormat       string           `json:"content_format,omitempty" validate:"omitempty,oneof=text markdown"`

	VerifyKeywords  VerifyKeywords `json:"verify_keywords"`
	LinkTemplate    string         `json:"link_template,omitempty"`
	URLKeywords     URLKeywords    `json:"url_keywords"`
	URLIgnoreList   []string       `json:"url_ignore_list,omitempty"`
	HrefIgnoreWords []string       `json:"href_ignore_words,omitempty"`
	KeyPhrase       string         `json:"key_phrase,omitempty"`
	RefineLinkList  bool           `json:"refine_link_list,omitempty"`

	LLMInstructions LLMInstructions `json:"llm_instructions"`
	Model           string          `json:"model,omitempty"`
	JSONData        HistoricalBlob  `json:"json_data,omitempty"`

	BrowserType    string         `json:"browser_type,omitempty" validate:"omitempty,oneof=chromium static"`
	DeploymentType DeploymentMode `json:"deployment_type,omitempty" validate:"omitempty,oneof=local hosted"`

	GroqAPIKey        string `json:"groq_api_key,omitempty"`
	GroqAPISecretARN  string `json:"groq_api_secret_arn,omitempty"`
	DiscordWebhookURL string `json:"discord_webhook_url,omitempty"`
	DiscordWebhookARN string `json:"discord_webhook_arn,omitempty"`

	MessagesTable    string `json:"messages_table,omitempty"`
	S3ArtifactBucket string `json:"s3_artifact_bucket,omitempty"`
}

// WithDefaults returns a copy with unset optional fields filled in.
func (c WorkflowConfig) WithDefaults() WorkflowConfig {
	if c.Selector == "" && len(c.Selectors) == 0 {
		c.Selector = DefaultSelector
	}
	if c.ExtractionMethod == "" {
		c.ExtractionMethod = ExtractionHTML
	}
	c.ExtractionMethod = ExtractionMethod(strings.ToLower(string(c.ExtractionMethod)))
	if c.PageContentSelector == "" {
		c.PageContentSelector = DefaultContentSelector
	}
	if c.ContentFormat == "" {
		c.ContentFormat = ContentFormatText
	}
	switch strings.ToLower(c.BrowserType) {
	case "", "firefox", BrowserChromium:
		// firefox is accepted from older site files and runs on the chromium engine
		c.BrowserType = BrowserChromium
	default:
		c.BrowserType = strings.ToLower(c.BrowserType)
	}
	if c.DeploymentType == "" {
		c.DeploymentType = DeploymentHosted
	}
	return c
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func (c WorkflowConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(c.JSONData) > 0 {
		if _, err := c.JSONData.Values(); err != nil {
			return fmt.Errorf("%w: json_data: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// IsLocal reports whether the run should skip remote secrets and remote sinks.
func (c WorkflowConfig) IsLocal() bool {
	return c.DeploymentType == DeploymentLocal
}

// PrimarySelector returns the CSS selector used to collect candidate anchors.
func (c WorkflowConfig) PrimarySelector() string {
	if c.Selector != "" {
		return c.Selector
	}
	if len(c.Selectors) > 0 {
		return strings.Join(c.Selectors, ", ")
	}
	return DefaultSelector
}

// Instructions returns the task prompt. Hosted configs carry it base64 encoded.
func (c WorkflowConfig) Instructions() (string, error) {
	if c.IsLocal() {
		return c.LLMInstructions.System, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(c.LLMInstructions.System)
	if err != nil {
		return "", fmt.Errorf("failed to decode llm instructions: %w", err)
	}
	return string(decoded), nil
}

// Redacted returns the config as JSON with secrets removed and instructions
// decoded where possible, for storage alongside run artifacts.
func (c WorkflowConfig) Redacted() json.RawMessage {
	if decoded, err := base64.StdEncoding.DecodeString(c.LLMInstructions.System); err == nil {
		c.LLMInstructions.System = string(decoded)
	}
	c.GroqAPIKey = ""
	c.DiscordWebhookURL = ""
	data, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	return data
}

// FlexInt accepts 4, 4.0, "4" and "4.0". Environment-sourced quarter and year
// values arrive as strings.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	v, err := parseFlexNumber(data)
	if err != nil {
		return err
	}
	*f = FlexInt(int(v))
	return nil
}

func (f FlexInt) Int() int {
	return int(f)
}

// FlexFloat accepts numbers and numeric strings.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	v, err := parseFlexNumber(data)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

func parseFlexNumber(data []byte) (float64, error) {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return 0, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return 0, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", s)
	}
	return v, nil
}

// HistoricalBlob holds prior-period and estimate figures. Site files store
// it either as a JSON object or as a string containing a JSON object.
type HistoricalBlob json.RawMessage

func (h *HistoricalBlob) UnmarshalJSON(data []byte) error {
	*h = append((*h)[:0], data...)
	return nil
}

func (h HistoricalBlob) MarshalJSON() ([]byte, error) {
	if len(h) == 0 {
		return []byte("null"), nil
	}
	return h, nil
}

// Values decodes the blob into a lookup of nullable figures.
func (h HistoricalBlob) Values() (map[string]MetricValue, error) {
	values := map[string]MetricValue{}
	raw := strings.TrimSpace(string(h))
	if raw == "" || raw == "null" {
		return values, nil
	}
	data := []byte(raw)
	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, err
		}
		if strings.TrimSpace(inner) == "" {
			return values, nil
		}
		data = []byte(inner)
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("historical data is not a JSON object: %w", err)
	}
	return values, nil
}
