package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// GeminiProvider uses the Gemini API through the genai SDK.
type GeminiProvider struct {
	client *genai.Client
	logger arbor.ILogger
}

var _ interfaces.ChatProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string, logger arbor.ILogger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, logger: logger}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Complete(ctx context.Context, req interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	return &interfaces.ChatResponse{
		Text:     resp.Text(),
		Provider: p.Name(),
		Model:    req.Model,
	}, nil
}
