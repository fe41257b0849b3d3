package interfaces

import (
	"context"
)

// ChatRequest is a provider-agnostic single-turn completion request.
type ChatRequest struct {
	// System carries the instructions; User carries the document content.
	System string
	User   string

	// Model overrides the provider's configured default when set.
	Model       string
	Temperature float64

	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

// ChatResponse is the provider's reply.
type ChatResponse struct {
	Text     string
	Provider string
	Model    string
}

// ChatProvider answers structured extraction prompts.
type ChatProvider interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
}
