package unifiedllm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// SDKError is the base error type for all unified LLM errors.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// HTTPError is a non-success HTTP status from a provider.
type HTTPError struct {
	SDKError
	Provider string
	Status   int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("[%s] http %d: %s", e.Provider, e.Status, e.Message)
}

// ProviderError is an error reported by the provider in its response body.
type ProviderError struct {
	SDKError
	Provider string
	Code     string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("[%s] %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// AuthenticationError is a rejected or missing credential.
type AuthenticationError struct{ HTTPError }

// RateLimitError is a 429. RetryAfter is zero when the provider gave no hint.
type RateLimitError struct {
	HTTPError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.HTTPError.Error(), e.RetryAfter)
	}
	return e.HTTPError.Error()
}

// Non-HTTP errors.

type NetworkError struct{ SDKError }
type InvalidResponseError struct{ SDKError }
type ConfigurationError struct{ SDKError }
type StreamingError struct{ SDKError }

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
func ErrorFromStatusCode(provider string, status int, message string, retryAfter time.Duration) error {
	he := HTTPError{
		SDKError: SDKError{Message: message},
		Provider: provider,
		Status:   status,
	}
	switch status {
	case 401, 403:
		return &AuthenticationError{HTTPError: he}
	case 429:
		return &RateLimitError{HTTPError: he, RetryAfter: retryAfter}
	default:
		return &he
	}
}

var statusHints = []struct {
	status  int
	pattern *regexp.Regexp
}{
	{401, hintPattern("401", "unauthorized", "invalid key", "invalid api key", "api key")},
	{403, hintPattern("403", "forbidden")},
	{429, hintPattern("429", "rate limit", "too many requests")},
	{404, hintPattern("404", "not found")},
	{400, hintPattern("400", "bad request")},
	{413, hintPattern("413", "context length", "too many tokens")},
	{500, hintPattern("500", "internal server")},
	{502, hintPattern("502", "bad gateway")},
	{503, hintPattern("503", "unavailable", "overloaded")},
}

// hintPattern matches any of words as whole words, so "5000" is not a 500.
func hintPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// ClassifyError converts an arbitrary client error into the unified
// taxonomy. Errors that already belong to it are returned unchanged.
func ClassifyError(provider string, err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{SDKError: SDKError{Message: err.Error(), Cause: err}}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NetworkError{SDKError: SDKError{Message: err.Error(), Cause: err}}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, h := range statusHints {
		if h.pattern.MatchString(lower) {
			e := ErrorFromStatusCode(provider, h.status, msg, 0)
			setCause(e, err)
			return e
		}
	}
	switch {
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") || strings.Contains(lower, "timeout") || strings.Contains(lower, "eof"):
		return &NetworkError{SDKError: SDKError{Message: msg, Cause: err}}
	case strings.Contains(lower, "unmarshal") || strings.Contains(lower, "invalid character") || strings.Contains(lower, "decode"):
		return &InvalidResponseError{SDKError: SDKError{Message: msg, Cause: err}}
	}
	return &ProviderError{SDKError: SDKError{Message: msg, Cause: err}, Provider: provider}
}

func isClassified(err error) bool {
	switch err.(type) {
	case *HTTPError, *ProviderError, *AuthenticationError, *RateLimitError,
		*NetworkError, *InvalidResponseError, *ConfigurationError, *StreamingError:
		return true
	}
	return false
}

func setCause(err, cause error) {
	switch e := err.(type) {
	case *HTTPError:
		e.Cause = cause
	case *AuthenticationError:
		e.Cause = cause
	case *RateLimitError:
		e.Cause = cause
	}
}
