package renderer

import (
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
)

// FallbackPolicy serves the primary engine for the first After attempts and
// the fallback engine for every attempt after that. The switch happens once.
type FallbackPolicy struct {
	Primary  interfaces.PageRenderer
	Fallback interfaces.PageRenderer
	After    int
}

var _ interfaces.RendererPolicy = (*FallbackPolicy)(nil)

// ForAttempt returns the engine for a zero-based attempt index.
func (f *FallbackPolicy) ForAttempt(attempt int) interfaces.PageRenderer {
	if f.Fallback == nil || attempt < f.After {
		return f.Primary
	}
	return f.Fallback
}

// Single is a policy that always returns the same engine.
type Single struct {
	Renderer interfaces.PageRenderer
}

func (s Single) ForAttempt(int) interfaces.PageRenderer {
	return s.Renderer
}

// New builds a renderer for engine.
func New(engine string, config common.BrowserConfig, client *http.Client, logger arbor.ILogger) (interfaces.PageRenderer, error) {
	switch engine {
	case models.BrowserChromium:
		return NewChromeRenderer(config, logger), nil
	case models.BrowserStatic:
		return NewStaticRenderer(client, config.UserAgent, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser engine: %s", engine)
	}
}

// NewPolicy builds the engine schedule for a run. siteEngine, when set,
// overrides the configured primary engine.
func NewPolicy(siteEngine string, config common.BrowserConfig, client *http.Client, logger arbor.ILogger) (interfaces.RendererPolicy, error) {
	engine := config.Engine
	if siteEngine != "" {
		engine = siteEngine
	}

	primary, err := New(engine, config, client, logger)
	if err != nil {
		return nil, err
	}

	if config.FallbackEngine == "" || config.FallbackEngine == engine {
		return Single{Renderer: primary}, nil
	}

	fallback, err := New(config.FallbackEngine, config, client, logger)
	if err != nil {
		return nil, err
	}

	return &FallbackPolicy{Primary: primary, Fallback: fallback, After: config.FallbackAfter}, nil
}
