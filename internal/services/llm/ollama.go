package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// OllamaProvider calls a local or remote Ollama server.
type OllamaProvider struct {
	client *api.Client
	logger arbor.ILogger
}

var _ interfaces.ChatProvider = (*OllamaProvider)(nil)

// NewOllamaProvider creates an Ollama provider. An empty host falls back to OLLAMA_HOST.
func NewOllamaProvider(host string, httpClient *http.Client, logger arbor.ILogger) (*OllamaProvider, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return &OllamaProvider{client: client, logger: logger}, nil
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaProvider{client: api.NewClient(base, httpClient), logger: logger}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Complete(ctx context.Context, req interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model: req.Model,
		Messages: []api.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Stream:  &stream,
		Options: map[string]any{"temperature": req.Temperature},
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var out api.ChatResponse
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		out = resp
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return nil, &StatusError{Provider: p.Name(), StatusCode: statusErr.StatusCode, Body: statusErr.ErrorMessage}
		}
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	return &interfaces.ChatResponse{
		Text:     out.Message.Content,
		Provider: p.Name(),
		Model:    req.Model,
	}, nil
}
