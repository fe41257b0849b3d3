package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// jsonOnlySuffix stands in for JSON mode, which the Messages API lacks.
const jsonOnlySuffix = "\nRespond with a single JSON object and nothing else."

// ClaudeProvider uses the Anthropic Messages API.
type ClaudeProvider struct {
	client    anthropic.Client
	maxTokens int
	logger    arbor.ILogger
}

var _ interfaces.ChatProvider = (*ClaudeProvider)(nil)

// NewClaudeProvider creates a Claude provider
func NewClaudeProvider(apiKey string, maxTokens int, logger arbor.ILogger) *ClaudeProvider {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &ClaudeProvider{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

func (p *ClaudeProvider) Complete(ctx context.Context, req interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	system := req.System
	if req.JSON {
		system += jsonOnlySuffix
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(p.maxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.User))},
		Temperature: anthropic.Float(req.Temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	return &interfaces.ChatResponse{
		Text:     text.String(),
		Provider: p.Name(),
		Model:    string(resp.Model),
	}, nil
}
