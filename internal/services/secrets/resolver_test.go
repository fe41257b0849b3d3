package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

type fakeSecrets struct {
	values map[string]string
	calls  int
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[aws.ToString(params.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestManagerResolver(t *testing.T) {
	client := &fakeSecrets{values: map[string]string{
		"arn:groq":    `{"GROQ_API_KEY":"gsk_test","RETRIES":3}`,
		"arn:broken":  `not json`,
		"arn:discord": `{"DISCORD_WEBHOOK_URL":"https://discord.example/hook"}`,
	}}
	r := NewManagerResolver(client, arbor.NewLogger())
	ctx := context.Background()

	v, err := r.Resolve(ctx, "arn:groq", "GROQ_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "gsk_test", v)

	v, err = r.Resolve(ctx, "arn:groq", "RETRIES")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
	assert.Equal(t, 1, client.calls, "second lookup should hit the cache")

	_, err = r.Resolve(ctx, "arn:groq", "MISSING")
	assert.ErrorContains(t, err, "no field MISSING")

	_, err = r.Resolve(ctx, "arn:broken", "X")
	assert.ErrorContains(t, err, "not a JSON object")

	_, err = r.Resolve(ctx, "arn:unknown", "X")
	assert.ErrorContains(t, err, "ResourceNotFoundException")

	v, err = r.Resolve(ctx, "arn:discord", "DISCORD_WEBHOOK_URL")
	require.NoError(t, err)
	assert.Equal(t, "https://discord.example/hook", v)
}

func TestEnvResolver(t *testing.T) {
	env := map[string]string{"GROQ_API_KEY": "local-key"}
	r := NewEnvResolver(func(k string) string { return env[k] })

	v, err := r.Resolve(context.Background(), "ignored", "GROQ_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "local-key", v)

	_, err = r.Resolve(context.Background(), "ignored", "DISCORD_WEBHOOK_URL")
	assert.Error(t, err)
}

func TestLazyBuildsOnce(t *testing.T) {
	builds := 0
	l := NewLazy(func(ctx context.Context) (interfaces.SecretResolver, error) {
		builds++
		return NewEnvResolver(func(k string) string { return "v-" + k }), nil
	})
	assert.Equal(t, 0, builds)

	for i := 0; i < 3; i++ {
		v, err := l.Resolve(context.Background(), "arn", "GROQ_API_KEY")
		require.NoError(t, err)
		assert.Equal(t, "v-GROQ_API_KEY", v)
	}
	assert.Equal(t, 1, builds)

	failing := NewLazy(func(ctx context.Context) (interfaces.SecretResolver, error) {
		return nil, errors.New("no credentials")
	})
	_, err := failing.Resolve(context.Background(), "arn", "X")
	assert.ErrorContains(t, err, "no credentials")
}
