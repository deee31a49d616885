package unifiedllm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{401, "*unifiedllm.AuthenticationError"},
		{403, "*unifiedllm.AuthenticationError"},
		{429, "*unifiedllm.RateLimitError"},
		{400, "*unifiedllm.HTTPError"},
		{500, "*unifiedllm.HTTPError"},
		{503, "*unifiedllm.HTTPError"},
	}
	for _, tt := range tests {
		err := ErrorFromStatusCode("openai", tt.status, "test error", 0)
		assert.Equal(t, tt.want, fmt.Sprintf("%T", err), "status %d", tt.status)
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	err := ErrorFromStatusCode("anthropic", 429, "slow down", 7*time.Second)

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
	assert.Equal(t, 429, rl.Status)
	assert.Contains(t, err.Error(), "retry after 7s")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"401 Unauthorized", "*unifiedllm.AuthenticationError"},
		{"invalid api key", "*unifiedllm.AuthenticationError"},
		{"403 Forbidden", "*unifiedllm.AuthenticationError"},
		{"429 rate limit exceeded", "*unifiedllm.RateLimitError"},
		{"404 model not found", "*unifiedllm.HTTPError"},
		{"context length exceeded", "*unifiedllm.HTTPError"},
		{"500 internal server error", "*unifiedllm.HTTPError"},
		{"status=503", "*unifiedllm.HTTPError"},
		{"max_tokens 5000 exceeds limit", "*unifiedllm.ProviderError"},
		{"request id 4001 rejected", "*unifiedllm.ProviderError"},
		{"api keyring locked", "*unifiedllm.ProviderError"},
		{"dial tcp: connection refused", "*unifiedllm.NetworkError"},
		{"invalid character '<' looking for beginning of value", "*unifiedllm.InvalidResponseError"},
		{"something unknown", "*unifiedllm.ProviderError"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := ClassifyError("openai", errors.New(tt.msg))
			assert.Equal(t, tt.want, fmt.Sprintf("%T", err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestClassifyErrorKeepsClassified(t *testing.T) {
	orig := &StreamingError{SDKError: SDKError{Message: "stream broke"}}
	assert.Same(t, orig, ClassifyError("openai", orig))
	assert.NoError(t, ClassifyError("openai", nil))
}

func TestClassifyErrorContext(t *testing.T) {
	err := ClassifyError("openai", context.DeadlineExceeded)

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSDKErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &SDKError{Message: "wrapper", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "wrapper: root cause")
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{
		SDKError: SDKError{Message: "model is overloaded"},
		Provider: "anthropic",
		Code:     "overloaded_error",
	}
	assert.EqualError(t, err, "[anthropic] overloaded_error: model is overloaded")
}
