package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/hjson/hjson-go/v4"
	"github.com/ternarybob/arbor"
	"github.com/xeipuuv/gojsonschema"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/services/llm"
	"github.com/ternarybob/earningsear/internal/services/retry"
)

// ParseFailurePrefix starts the soft error recorded when every attempt failed.
const ParseFailurePrefix = "Failed to parse metrics from GPT response after retries: "

// ProviderSource yields the chat provider and model for a site.
type ProviderSource interface {
	ForSite(ctx context.Context, site models.WorkflowConfig) (interfaces.ChatProvider, string, error)
}

// BuildSystemPrompt prefixes the site's instructions with the guardrail
// that forbids invented figures.
func BuildSystemPrompt(ticker string, quarter, year int, instructions string) string {
	return fmt.Sprintf(
		"Follow the below steps unless the provided information is empty or does not contain the earnings press release for %s for %d %d\n"+
			"DO NOT MAKE UP METRICS, ONLY USE NUMBERS PROVIDED IN THE CONTENT OF THE NEXT MESSAGE\n%s",
		ticker, quarter, year, instructions)
}

// Client turns release text into ExtractedMetrics through a chat model.
type Client struct {
	providers ProviderSource
	retry     *retry.Policy
	schema    *gojsonschema.Schema
	logger    arbor.ILogger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewClient creates a metrics client. Parse failures and 400 responses are
// retried config.MaxAttempts times with doubling backoff.
func NewClient(providers ProviderSource, config common.LLMConfig, schema *gojsonschema.Schema, logger arbor.ILogger) *Client {
	attempts := config.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Client{
		providers: providers,
		retry: &retry.Policy{
			MaxAttempts:       attempts,
			InitialBackoff:    common.Duration(config.InitialBackoff, time.Second),
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		},
		schema: schema,
		logger: logger,
		sleep:  retry.Sleep,
	}
}

// Extract requests metrics for content. Exhausted retries produce a result
// whose Error is set rather than an error return; transport failures other
// than 400 are returned as errors.
func (c *Client) Extract(ctx context.Context, site models.WorkflowConfig, content string) (*models.ExtractedMetrics, error) {
	instructions, err := site.Instructions()
	if err != nil {
		return nil, err
	}

	provider, model, err := c.providers.ForSite(ctx, site)
	if err != nil {
		return nil, err
	}

	req := interfaces.ChatRequest{
		System:      BuildSystemPrompt(site.Ticker, site.Quarter.Int(), site.Year.Int(), instructions),
		User:        content,
		Model:       model,
		Temperature: float64(int(site.LLMInstructions.Temperature)),
		JSON:        true,
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		resp, err := provider.Complete(ctx, req)
		switch {
		case err == nil:
			metrics, parseErr := c.Parse(resp.Text)
			if parseErr == nil {
				c.logger.Info().
					Str("provider", resp.Provider).
					Str("model", resp.Model).
					Int("attempt", attempt+1).
					Msg("Extracted metrics from release")
				return metrics, nil
			}
			lastErr = parseErr
		case llm.IsBadRequestError(err):
			lastErr = err
		case llm.IsRateLimitError(err):
			return nil, fmt.Errorf("metrics request rate limited by %s: %w", provider.Name(), err)
		default:
			return nil, fmt.Errorf("metrics request failed: %w", err)
		}

		c.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Int("max_attempts", c.retry.MaxAttempts).
			Msg("Metrics response unusable")

		if attempt+1 < c.retry.MaxAttempts {
			if err := c.sleep(ctx, c.retry.Backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}

	return &models.ExtractedMetrics{Error: ParseFailurePrefix + lastErr.Error()}, nil
}

// Parse decodes a model response. Strict JSON is tried first, then a repaired
// version, then hjson. Only complete objects are repaired, so prose and
// truncated replies fail here and are retried. The result must match the
// response schema.
func (c *Client) Parse(text string) (*models.ExtractedMetrics, error) {
	doc, err := normalize(text)
	if err != nil {
		return nil, err
	}

	if c.schema != nil {
		if err := validate(c.schema, doc); err != nil {
			return nil, err
		}
	}

	var metrics models.ExtractedMetrics
	if err := json.Unmarshal(doc, &metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	metrics.Raw = doc
	return &metrics, nil
}

// normalize returns strict JSON for a response body.
func normalize(text string) ([]byte, error) {
	body := stripFences(text)
	if body == "" {
		return nil, fmt.Errorf("empty response")
	}
	if isObject(body) {
		return []byte(body), nil
	}
	if !strings.HasPrefix(body, "{") {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	if !isClosed(body) {
		return nil, fmt.Errorf("response is not a complete JSON object")
	}

	if repaired, err := jsonrepair.RepairJSON(body); err == nil && isObject(repaired) {
		return []byte(repaired), nil
	}

	// hjson decodes into a map, so key order is not preserved on this path.
	var doc map[string]interface{}
	if err := hjson.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	return json.Marshal(doc)
}

func isObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}

// isClosed reports whether the braces and brackets of s balance and the
// outermost object ends at the last byte.
func isClosed(s string) bool {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i == len(s)-1
			}
		}
	}
	return false
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
