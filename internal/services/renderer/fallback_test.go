package renderer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/models"
)

func TestFallbackPolicySwitchesOnce(t *testing.T) {
	primary := NewStaticRenderer(nil, "", arbor.NewLogger())
	fallback := NewStaticRenderer(nil, "other", arbor.NewLogger())
	policy := &FallbackPolicy{Primary: primary, Fallback: fallback, After: 2}

	assert.Same(t, primary, policy.ForAttempt(0))
	assert.Same(t, primary, policy.ForAttempt(1))
	for attempt := 2; attempt < 8; attempt++ {
		assert.Same(t, fallback, policy.ForAttempt(attempt), fmt.Sprintf("attempt %d", attempt))
	}
}

func TestFallbackPolicyWithoutFallback(t *testing.T) {
	primary := NewStaticRenderer(nil, "", arbor.NewLogger())
	policy := &FallbackPolicy{Primary: primary, After: 0}
	assert.Same(t, primary, policy.ForAttempt(5))
}

func TestNewPolicy(t *testing.T) {
	logger := arbor.NewLogger()
	config := common.NewDefaultConfig().Browser

	policy, err := NewPolicy("", config, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, models.BrowserChromium, policy.ForAttempt(0).Engine())
	assert.Equal(t, models.BrowserStatic, policy.ForAttempt(config.FallbackAfter).Engine())

	policy, err = NewPolicy(models.BrowserStatic, config, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, Single{}, policy)
	assert.Equal(t, models.BrowserStatic, policy.ForAttempt(7).Engine())

	_, err = NewPolicy("webkit", config, nil, logger)
	assert.Error(t, err)
}

func TestEscalation(t *testing.T) {
	e := NewEscalation(5*time.Second, 10*time.Second, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 5*time.Second, e.Current())
		assert.True(t, e.Observe(fmt.Errorf("navigate: %w", context.DeadlineExceeded)))
	}
	assert.Equal(t, 10*time.Second, e.Current())

	assert.False(t, e.Observe(fmt.Errorf("boom")))
	assert.False(t, e.Observe(nil))
	assert.True(t, e.Observe(fmt.Errorf("read: %w", models.ErrExtractionTimeout)))
	assert.Equal(t, 4, e.Timeouts())
}
