package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ManagerResolver reads JSON secrets from AWS Secrets Manager. Secret
// strings are cached per id for the life of the process.
type ManagerResolver struct {
	client SecretsAPI
	logger arbor.ILogger

	mu    sync.Mutex
	cache map[string]map[string]string
}

var _ interfaces.SecretResolver = (*ManagerResolver)(nil)

// NewManagerResolver creates a Secrets Manager backed resolver
func NewManagerResolver(client SecretsAPI, logger arbor.ILogger) *ManagerResolver {
	return &ManagerResolver{
		client: client,
		logger: logger,
		cache:  make(map[string]map[string]string),
	}
}

// Resolve returns field from the JSON secret secretID.
func (r *ManagerResolver) Resolve(ctx context.Context, secretID, field string) (string, error) {
	values, err := r.load(ctx, secretID)
	if err != nil {
		return "", err
	}

	v, ok := values[field]
	if !ok {
		return "", fmt.Errorf("secret %s has no field %s", secretID, field)
	}
	return v, nil
}

func (r *ManagerResolver) load(ctx context.Context, secretID string) (map[string]string, error) {
	r.mu.Lock()
	cached, ok := r.cache[secretID]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", secretID, err)
	}

	values, err := parseSecret(aws.ToString(out.SecretString))
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", secretID, err)
	}

	r.mu.Lock()
	r.cache[secretID] = values
	r.mu.Unlock()

	r.logger.Debug().Str("secret", secretID).Int("fields", len(values)).Msg("Loaded secret")
	return values, nil
}

// parseSecret flattens a JSON object secret into string values. Non-string
// members keep their JSON text.
func parseSecret(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("secret string is empty")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("secret is not a JSON object: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			values[k] = str
			continue
		}
		values[k] = string(v)
	}
	return values, nil
}

// EnvResolver reads the field name from the environment and ignores the
// secret id. Local runs use it so no AWS credentials are needed.
type EnvResolver struct {
	getenv func(string) string
}

var _ interfaces.SecretResolver = (*EnvResolver)(nil)

// NewEnvResolver creates a resolver over getenv, or os.Getenv when nil.
func NewEnvResolver(getenv func(string) string) *EnvResolver {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &EnvResolver{getenv: getenv}
}

func (r *EnvResolver) Resolve(ctx context.Context, secretID, field string) (string, error) {
	if v := r.getenv(field); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("environment variable %s is not set", field)
}
