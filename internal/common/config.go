package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Workflow    RunConfig       `toml:"workflow"`
	Browser     BrowserConfig   `toml:"browser"`
	LLM         LLMConfig       `toml:"llm"`
	Groq        GroqConfig      `toml:"groq"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	Ollama      OllamaConfig    `toml:"ollama"`
	Notify      NotifyConfig    `toml:"notify"`
	AWS         AWSConfig       `toml:"aws"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Metrics     MetricsConfig   `toml:"metrics"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// StorageConfig selects where messages, artifacts and site configs live.
// "badger" keeps everything local; "aws" writes messages to DynamoDB and artifacts to S3.
type StorageConfig struct {
	Type      string         `toml:"type"`
	Artifacts bool           `toml:"artifacts"` // persist run artifacts
	Badger    BadgerConfig   `toml:"badger"`
	DynamoDB  DynamoDBConfig `toml:"dynamodb"`
	S3        S3Config       `toml:"s3"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type DynamoDBConfig struct {
	MessagesTable string `toml:"messages_table"`
}

type S3Config struct {
	ArtifactBucket string `toml:"artifact_bucket"`
}

// RunConfig holds the locator and extractor retry budgets.
type RunConfig struct {
	LocatorAttempts   int    `toml:"locator_attempts"`    // counted iterations before LinkNotFound
	MaxIdleIterations int    `toml:"max_idle_iterations"` // ceiling on uncounted (no elements) iterations
	IterationSleep    string `toml:"iteration_sleep"`     // pause between counted iterations
	ExtractAttempts   int    `toml:"extract_attempts"`
	ShortTimeoutCount int    `toml:"short_timeout_count"` // timeouts tolerated before escalating
	NavTimeout        string `toml:"nav_timeout"`
	NavTimeoutLong    string `toml:"nav_timeout_long"`
	SelectorTimeout   string `toml:"selector_timeout"`
	SelectorLong      string `toml:"selector_timeout_long"`
	TextTimeout       string `toml:"text_timeout"`
	TextTimeoutLong   string `toml:"text_timeout_long"`
	HTTPTimeout       string `toml:"http_timeout"`
	FetchAttempts     int    `toml:"fetch_attempts"`
}

type BrowserConfig struct {
	Engine         string `toml:"engine"`          // "chromium" or "static"
	FallbackEngine string `toml:"fallback_engine"` // engine used after FallbackAfter attempts; empty disables
	FallbackAfter  int    `toml:"fallback_after"`
	Headless       bool   `toml:"headless"`
	UserAgent      string `toml:"user_agent"`
	BlockResources bool   `toml:"block_resources"` // skip images, stylesheets and fonts
	ExecPath       string `toml:"exec_path"`
}

// LLMProvider identifies a chat completion backend
type LLMProvider string

const (
	LLMProviderGroq   LLMProvider = "groq"
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderOllama LLMProvider = "ollama"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider    LLMProvider `toml:"default_provider"`
	MaxAttempts        int         `toml:"max_attempts"`
	InitialBackoff     string      `toml:"initial_backoff"`
	RequestsPerMinute  int         `toml:"requests_per_minute"`
	ResponseSchemaFile string      `toml:"response_schema_file"` // optional override of the built-in schema
}

type GroqConfig struct {
	APIKey    string `toml:"api_key"`
	SecretARN string `toml:"secret_arn"`
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`
}

type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

type OllamaConfig struct {
	Host  string `toml:"host"`
	Model string `toml:"model"`
}

type NotifyConfig struct {
	Discord DiscordConfig `toml:"discord"`
	Email   EmailConfig   `toml:"email"`
	SNS     SNSConfig     `toml:"sns"`
}

type DiscordConfig struct {
	Enabled    bool   `toml:"enabled"`
	WebhookURL string `toml:"webhook_url"`
	SecretARN  string `toml:"secret_arn"`
	Username   string `toml:"username"`
}

type EmailConfig struct {
	Enabled  bool     `toml:"enabled"`
	Host     string   `toml:"host"`
	Port     int      `toml:"port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from"`
	To       []string `toml:"to"`
}

type SNSConfig struct {
	TopicARN string `toml:"topic_arn"`
}

type AWSConfig struct {
	Region string `toml:"region"`
}

// SchedulerConfig lists the watch jobs run by `earningsear serve`.
type SchedulerConfig struct {
	Jobs []ScheduleJob `toml:"jobs"`
}

// ScheduleJob runs one site config on a cron schedule until it succeeds.
type ScheduleJob struct {
	Name       string `toml:"name"`
	Schedule   string `toml:"schedule"`    // 6-field cron expression (with seconds)
	SiteConfig string `toml:"site_config"` // path to a site JSON file; empty loads Ticker from the store
	Ticker     string `toml:"ticker"`
	Quarter    int    `toml:"quarter"`
	Year       int    `toml:"year"`
	KeepAfter  bool   `toml:"keep_after_success"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Workflow: RunConfig{
			LocatorAttempts:   8,
			MaxIdleIterations: 32,
			IterationSleep:    "3s",
			ExtractAttempts:   8,
			ShortTimeoutCount: 3,
			NavTimeout:        "5s",
			NavTimeoutLong:    "10s",
			SelectorTimeout:   "5s",
			SelectorLong:      "10s",
			TextTimeout:       "10s",
			TextTimeoutLong:   "20s",
			HTTPTimeout:       "30s",
			FetchAttempts:     3,
		},
		Browser: BrowserConfig{
			Engine:         "chromium",
			FallbackEngine: "static",
			FallbackAfter:  2,
			Headless:       true,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			BlockResources: true,
		},
		LLM: LLMConfig{
			DefaultProvider:   LLMProviderGroq,
			MaxAttempts:       3,
			InitialBackoff:    "1s",
			RequestsPerMinute: 30,
		},
		Groq: GroqConfig{
			Model:   "llama-3.3-70b-versatile",
			BaseURL: "https://api.groq.com/openai/v1",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 8192,
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llama3.1",
		},
		Notify: NotifyConfig{
			Discord: DiscordConfig{
				Enabled:  true,
				Username: "EarningsEar",
			},
			Email: EmailConfig{
				Port: 587,
			},
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal merges over existing values, later files win
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	for _, job := range config.Scheduler.Jobs {
		if err := ValidateJobSchedule(job.Schedule); err != nil {
			return nil, fmt.Errorf("scheduler job %q: %w", job.Name, err)
		}
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("EARNINGSEAR_ENV"); env != "" {
		config.Environment = env
	}

	// Logging configuration
	if level := os.Getenv("EARNINGSEAR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("EARNINGSEAR_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Storage configuration
	if storageType := os.Getenv("EARNINGSEAR_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("EARNINGSEAR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if table := os.Getenv("EARNINGSEAR_MESSAGES_TABLE"); table != "" {
		config.Storage.DynamoDB.MessagesTable = table
	}
	if bucket := os.Getenv("EARNINGSEAR_ARTIFACT_BUCKET"); bucket != "" {
		config.Storage.S3.ArtifactBucket = bucket
		config.Storage.Artifacts = true
	}

	// Browser configuration
	if engine := os.Getenv("EARNINGSEAR_BROWSER_ENGINE"); engine != "" {
		config.Browser.Engine = engine
	}
	if execPath := os.Getenv("EARNINGSEAR_CHROME_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}

	// LLM configuration
	if provider := os.Getenv("EARNINGSEAR_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if model := os.Getenv("EARNINGSEAR_GROQ_MODEL"); model != "" {
		config.Groq.Model = model
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		config.Ollama.Host = host
	}

	// Notification configuration
	if webhook := os.Getenv("EARNINGSEAR_DISCORD_WEBHOOK_URL"); webhook != "" {
		config.Notify.Discord.WebhookURL = webhook
	}
	if topic := os.Getenv("EARNINGSEAR_SNS_TOPIC_ARN"); topic != "" {
		config.Notify.SNS.TopicARN = topic
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		config.AWS.Region = region
	}

	if addr := os.Getenv("EARNINGSEAR_METRICS_ADDRESS"); addr != "" {
		config.Metrics.Address = addr
		config.Metrics.Enabled = true
	}
}

// ApplyFlagOverrides applies command-line flags, which have the highest priority
func ApplyFlagOverrides(config *Config, logLevel, engine string) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	if engine != "" {
		config.Browser.Engine = engine
	}
}

// apiKeyEnv maps credential names to the environment variables checked first.
var apiKeyEnv = map[string][]string{
	"groq_api_key":        {"EARNINGSEAR_GROQ_API_KEY", "GROQ_API_KEY"},
	"gemini_api_key":      {"EARNINGSEAR_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic_api_key":   {"EARNINGSEAR_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	"discord_webhook_url": {"EARNINGSEAR_DISCORD_WEBHOOK_URL", "DISCORD_WEBHOOK_URL"},
}

// SecretRef points at a field of a JSON secret.
type SecretRef struct {
	ID    string
	Field string
}

// ResolveAPIKey resolves a credential by name.
// Resolution order: environment variables → secret store → config fallback → error
func ResolveAPIKey(ctx context.Context, resolver interfaces.SecretResolver, name string, ref SecretRef, configFallback string) (string, error) {
	for _, envName := range apiKeyEnv[name] {
		if v := os.Getenv(envName); v != "" {
			return v, nil
		}
	}

	if resolver != nil && ref.ID != "" {
		v, err := resolver.Resolve(ctx, ref.ID, ref.Field)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s from secret %s: %w", name, ref.ID, err)
		}
		if v != "" {
			return v, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("credential '%s' not found in environment, secret store, or config", name)
}

// ValidateJobSchedule validates a 6-field cron expression (seconds first)
func ValidateJobSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// Duration parses s, returning fallback when s is empty or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		if secs, convErr := strconv.Atoi(s); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return fallback
	}
	return d
}
