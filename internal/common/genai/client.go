// Package genai is the client for the language-model gateway. It only moves
// prompts and completions; prompt design lives with the callers.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	commonhttp "inventory-assistant/internal/common/http"
	"inventory-assistant/internal/common/logger"
)

var (
	ErrLLMTimeout     = errors.New("LLM_TIMEOUT")
	ErrLLMUnavailable = errors.New("LLM_UNAVAILABLE")
)

// Completer is the language-model capability consumed by the router and agents.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type CompletionRequest struct {
	Model       string                 `json:"model,omitempty"`
	System      string                 `json:"system,omitempty"`
	Prompt      string                 `json:"prompt"`
	Context     map[string]interface{} `json:"context,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Temperature float64                `json:"temperature"`
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	MaxTokens  int
}

type Client struct {
	config *Config
	http   *commonhttp.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		// Deadlines are carried by the context; this only bounds a stuck connection.
		http:   commonhttp.NewClient(config.Timeout+5*time.Second, commonhttp.WithBearer(config.APIKey)),
		logger: logger.ForComponent(log, "genai"),
	}
}

// Complete sends one prompt and returns the completion text. Transient failures
// (transport errors, 429, 5xx) are retried with exponential backoff; a blown
// deadline returns ErrLLMTimeout immediately.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrLLMUnavailable, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ErrLLMTimeout
			}
		}

		text, retryable, err := c.do(ctx, body)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", ErrLLMTimeout
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Warn("completion attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"model":   req.Model,
			"error":   err.Error(),
		})
	}

	return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte) (string, bool, error) {
	var apiResponse struct {
		Text string `json:"text"`
	}
	err := c.http.PostJSON(ctx, c.config.BaseURL+"/api/ai/generate", body, &apiResponse)
	if err == nil {
		return apiResponse.Text, false, nil
	}

	var statusErr *commonhttp.StatusError
	if errors.As(err, &statusErr) {
		return "", statusErr.Retryable(), err
	}
	if errors.Is(err, commonhttp.ErrDecodeResponse) {
		return "", false, err
	}
	return "", true, err
}
