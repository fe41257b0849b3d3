package common

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hjson/hjson-go/v4"

	"github.com/ternarybob/earningsear/internal/models"
)

// Environment variables read by LoadWorkflowConfig. SITE_CONFIG holds the site JSON
// when no file is given.
const (
	EnvQuarter        = "QUARTER"
	EnvYear           = "YEAR"
	EnvTicker         = "TICKER"
	EnvDeploymentType = "DEPLOYMENT_TYPE"
	EnvGroqAPIKey     = "GROQ_API_KEY"
	EnvSiteConfig     = "SITE_CONFIG"
)

// NormalizeSiteJSON returns strict JSON for a site document. Hand-written site
// files may use hjson (comments, unquoted keys, trailing commas).
func NormalizeSiteJSON(data []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return []byte("{}"), nil
	}
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	var doc map[string]interface{}
	if err := hjson.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, fmt.Errorf("site config is neither JSON nor hjson: %w", err)
	}
	return json.Marshal(doc)
}

// LoadWorkflowConfig merges environment values with a site document. Site
// values override the environment, matching the worker handler contract.
func LoadWorkflowConfig(site []byte, getenv func(string) string) (models.WorkflowConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := models.WorkflowConfig{
		Ticker:         getenv(EnvTicker),
		DeploymentType: models.DeploymentMode(strings.ToLower(getenv(EnvDeploymentType))),
		GroqAPIKey:     getenv(EnvGroqAPIKey),
	}
	if q, ok := envNumber(getenv(EnvQuarter)); ok {
		cfg.Quarter = models.FlexInt(q)
	}
	if y, ok := envNumber(getenv(EnvYear)); ok {
		cfg.Year = models.FlexInt(y)
	}

	if site == nil {
		site = []byte(getenv(EnvSiteConfig))
	}
	data, err := NormalizeSiteJSON(site)
	if err != nil {
		return models.WorkflowConfig{}, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return models.WorkflowConfig{}, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return models.WorkflowConfig{}, err
	}
	return cfg, nil
}

// LoadWorkflowConfigFile reads a site document from path and merges it with the environment.
func LoadWorkflowConfigFile(path string, getenv func(string) string) (models.WorkflowConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.WorkflowConfig{}, fmt.Errorf("failed to read site config %s: %w", path, err)
	}
	return LoadWorkflowConfig(data, getenv)
}

func envNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
