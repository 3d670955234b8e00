package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"inventory-assistant/internal/common/config"
	apperrors "inventory-assistant/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testClient(3)
	calls := 0

	result, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("rpc error: code = Unavailable")
		}
		return "ok", nil
	}, "publish-message")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	c := testClient(3)
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("rpc error: code = NotFound desc = process not found")
	}, "create-instance")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	stdErr := apperrors.AsStandard(err)
	assert.Equal(t, apperrors.ErrCodeWorkflowEngineRejected, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestExecuteWithRetry_ExhaustsRetries(t *testing.T) {
	c := testClient(2)
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("context deadline exceeded")
	}, "complete-job")

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	stdErr := apperrors.AsStandard(err)
	assert.Equal(t, apperrors.ErrCodeWorkflowEngineUnavailable, stdErr.Code)
	assert.Equal(t, "complete-job", stdErr.Metadata["operation"])
}

func TestExecuteWithRetry_CancelledContext(t *testing.T) {
	c := testClient(5)
	c.config.RetryConfig.BaseDelay = time.Second
	c.config.RetryConfig.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("connection refused")
	}, "topology")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"dial tcp: connection refused", true},
		{"rpc error: code = DeadlineExceeded desc = deadline exceeded", true},
		{"broken pipe", true},
		{"permission denied", false},
		{"process already exists", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(errors.New(tt.msg)))
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cc := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 5000})
	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.Equal(t, 5*time.Second, cc.RequestTimeout)
	assert.Equal(t, DefaultRetryConfig, cc.RetryConfig)

	assert.Equal(t, 30*time.Second, ConfigFrom(config.CamundaConfig{}).RequestTimeout)
}
