package mode

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/1-kabir/cfm/pkg/backend"
)

func TestRetryPolicyDefaultsToSingleAttempt(t *testing.T) {
	policy := DefaultRetryPolicy()
	assert.False(t, policy.ShouldRetry(errors.New("connection refused"), 1))

	calls := 0
	err := policy.Execute(context.Background(), func() error {
		calls++
		return errors.New("connection refused")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyClassification(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: time.Second}

	assert.True(t, policy.ShouldRetry(errors.New("connection refused"), 1))
	assert.True(t, policy.ShouldRetry(&backend.StatusError{Code: http.StatusBadGateway}, 1))
	assert.True(t, policy.ShouldRetry(&backend.StatusError{Code: http.StatusTooManyRequests}, 1))
	assert.False(t, policy.ShouldRetry(&backend.StatusError{Code: http.StatusUnauthorized}, 1))
	assert.False(t, policy.ShouldRetry(context.Canceled, 1))
	assert.False(t, policy.ShouldRetry(nil, 1))
	assert.False(t, policy.ShouldRetry(errors.New("connection refused"), 3))
}

func TestRetryPolicyBackoff(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 10, InitialDelay: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second}

	assert.Equal(t, 1*time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 5*time.Second, policy.NextDelay(4))
}

func TestRetryPolicyExecuteRecovers(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 10 * time.Millisecond}

	calls := 0
	err := policy.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyExecuteStopsOnCancel(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 1, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := policy.Execute(ctx, func() error {
		calls++
		return errors.New("connection reset")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
