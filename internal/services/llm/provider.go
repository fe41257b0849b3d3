package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/services/metrics"
)

// groqSecretField is the JSON field holding the key inside the Groq secret.
const groqSecretField = "GROQ_API_KEY"

// Factory builds the chat provider for a run. Credentials depend on the
// site configuration, so providers are created per run while the rate
// limiter is shared.
type Factory struct {
	config   *common.Config
	resolver interfaces.SecretResolver
	client   *http.Client
	limiter  *rate.Limiter
	logger   arbor.ILogger
}

// NewFactory creates a provider factory. resolver may be nil in local mode.
func NewFactory(config *common.Config, resolver interfaces.SecretResolver, client *http.Client, logger arbor.ILogger) *Factory {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if rpm := config.LLM.RequestsPerMinute; rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}

	return &Factory{
		config:   config,
		resolver: resolver,
		client:   client,
		limiter:  limiter,
		logger:   logger,
	}
}

// DetectProvider determines the provider from a model string.
// Model strings can be:
// - "groq/llama-3.3-70b-versatile" or "llama-3.3-70b-versatile" -> default provider
// - "claude-sonnet-4-5" or "claude/claude-sonnet-4-5" -> Claude
// - "gemini-2.5-flash" or "gemini/gemini-2.5-flash" -> Gemini
// - "ollama/llama3.1" -> Ollama
func (f *Factory) DetectProvider(model string) common.LLMProvider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "groq/"):
		return common.LLMProviderGroq
	case strings.HasPrefix(m, "ollama/"):
		return common.LLMProviderOllama
	case strings.HasPrefix(m, "claude/"), strings.HasPrefix(m, "anthropic/"), strings.HasPrefix(m, "claude-"):
		return common.LLMProviderClaude
	case strings.HasPrefix(m, "gemini/"), strings.HasPrefix(m, "google/"), strings.HasPrefix(m, "gemini-"):
		return common.LLMProviderGemini
	}
	if f.config.LLM.DefaultProvider == "" {
		return common.LLMProviderGroq
	}
	return f.config.LLM.DefaultProvider
}

// NormalizeModel removes a provider prefix from a model name
func NormalizeModel(model string) string {
	for _, prefix := range []string{"groq/", "ollama/", "claude/", "anthropic/", "gemini/", "google/"} {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// DefaultModel returns the configured model for a provider
func (f *Factory) DefaultModel(provider common.LLMProvider) string {
	switch provider {
	case common.LLMProviderClaude:
		return f.config.Claude.Model
	case common.LLMProviderGemini:
		return f.config.Gemini.Model
	case common.LLMProviderOllama:
		return f.config.Ollama.Model
	default:
		return f.config.Groq.Model
	}
}

// ForSite returns the provider and model to use for site.
func (f *Factory) ForSite(ctx context.Context, site models.WorkflowConfig) (interfaces.ChatProvider, string, error) {
	providerType := f.DetectProvider(site.Model)
	model := NormalizeModel(site.Model)
	if model == "" {
		model = f.DefaultModel(providerType)
	}

	f.logger.Debug().
		Str("provider", string(providerType)).
		Str("model", model).
		Msg("Selecting LLM provider")

	var provider interfaces.ChatProvider
	switch providerType {
	case common.LLMProviderGroq:
		key, err := f.groqKey(ctx, site)
		if err != nil {
			return nil, "", err
		}
		provider = NewGroqProvider(key, f.config.Groq.BaseURL, f.client, f.logger)

	case common.LLMProviderGemini:
		key, err := common.ResolveAPIKey(ctx, nil, "gemini_api_key", common.SecretRef{}, f.config.Gemini.APIKey)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve Gemini API key: %w", err)
		}
		p, err := NewGeminiProvider(ctx, key, f.logger)
		if err != nil {
			return nil, "", err
		}
		provider = p

	case common.LLMProviderClaude:
		key, err := common.ResolveAPIKey(ctx, nil, "anthropic_api_key", common.SecretRef{}, f.config.Claude.APIKey)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve Anthropic API key: %w", err)
		}
		provider = NewClaudeProvider(key, f.config.Claude.MaxTokens, f.logger)

	case common.LLMProviderOllama:
		p, err := NewOllamaProvider(f.config.Ollama.Host, f.client, f.logger)
		if err != nil {
			return nil, "", err
		}
		provider = p

	default:
		return nil, "", fmt.Errorf("unsupported LLM provider: %s", providerType)
	}

	return &limitedProvider{inner: provider, limiter: f.limiter}, model, nil
}

// groqKey resolves the Groq key. Local sites may carry the key inline; hosted
// sites must name the secret holding it.
func (f *Factory) groqKey(ctx context.Context, site models.WorkflowConfig) (string, error) {
	if site.IsLocal() {
		key, err := common.ResolveAPIKey(ctx, nil, "groq_api_key", common.SecretRef{}, firstNonEmpty(site.GroqAPIKey, f.config.Groq.APIKey))
		if err != nil {
			return "", fmt.Errorf("failed to resolve Groq API key: %w", err)
		}
		return key, nil
	}

	arn := firstNonEmpty(site.GroqAPISecretARN, f.config.Groq.SecretARN)
	if arn == "" {
		return "", fmt.Errorf("%w: groq_api_secret_arn is required in hosted mode", models.ErrInvalidConfig)
	}
	key, err := common.ResolveAPIKey(ctx, f.resolver, "groq_api_key", common.SecretRef{ID: arn, Field: groqSecretField}, "")
	if err != nil {
		return "", fmt.Errorf("failed to resolve Groq API key: %w", err)
	}
	return key, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// limitedProvider waits on a shared limiter and records request metrics.
type limitedProvider struct {
	inner   interfaces.ChatProvider
	limiter *rate.Limiter
}

func (l *limitedProvider) Name() string {
	return l.inner.Name()
}

func (l *limitedProvider) Complete(ctx context.Context, req interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := l.inner.Complete(ctx, req)
	metrics.ObserveLLMRequest(l.inner.Name(), err)
	return resp, err
}
