package unifiedllm

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicProvider = "anthropic"

// AnthropicAdapter implements Model on the official Anthropic SDK.
type AnthropicAdapter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    string
}

// AnthropicOption configures an AnthropicAdapter.
type AnthropicOption func(*anthropicConfig)

type anthropicConfig struct {
	model      string
	maxTokens  int64
	system     string
	requestOpt []option.RequestOption
}

// WithAnthropicModel sets the model. Catalog aliases are accepted.
func WithAnthropicModel(model string) AnthropicOption {
	return func(c *anthropicConfig) { c.model = model }
}

// WithAnthropicMaxTokens sets the max tokens per reply.
func WithAnthropicMaxTokens(n int) AnthropicOption {
	return func(c *anthropicConfig) { c.maxTokens = int64(n) }
}

// WithAnthropicSystemPrompt sets a system prompt sent with every request.
func WithAnthropicSystemPrompt(s string) AnthropicOption {
	return func(c *anthropicConfig) { c.system = s }
}

// WithRequestOptions passes options through to the SDK client.
func WithRequestOptions(opts ...option.RequestOption) AnthropicOption {
	return func(c *anthropicConfig) { c.requestOpt = append(c.requestOpt, opts...) }
}

// NewAnthropicAdapter creates an adapter. An empty apiKey falls back to
// ANTHROPIC_API_KEY. SDK retries are disabled.
func NewAnthropicAdapter(apiKey string, opts ...AnthropicOption) (*AnthropicAdapter, error) {
	cfg := &anthropicConfig{maxTokens: 4096}
	for _, opt := range opts {
		opt(cfg)
	}

	model := ResolveModel(anthropicProvider, cfg.model)
	if model == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "no anthropic model configured"}}
	}

	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	reqOpts = append(reqOpts, cfg.requestOpt...)

	return &AnthropicAdapter{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: cfg.maxTokens,
		system:    cfg.system,
	}, nil
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string { return anthropicProvider }

// ModelID returns the resolved model id.
func (a *AnthropicAdapter) ModelID() string { return a.model }

func (a *AnthropicAdapter) params(prompt string) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}
	if a.system != "" {
		p.System = []anthropic.TextBlockParam{{Text: a.system}}
	}
	return p
}

// Generate implements Model.
func (a *AnthropicAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, a.params(prompt))
	if err != nil {
		return "", classifyAnthropic(err)
	}

	var sb strings.Builder
	for _, b := range msg.Content {
		if tb, ok := b.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &InvalidResponseError{SDKError: SDKError{Message: "anthropic reply has no text content"}}
	}
	return sb.String(), nil
}

// GenerateStreaming implements Model.
func (a *AnthropicAdapter) GenerateStreaming(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(prompt))
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		ev := stream.Current()
		delta, ok := ev.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if td, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && td.Text != "" {
			full.WriteString(td.Text)
			onChunk(td.Text)
		}
	}
	if err := stream.Err(); err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) || ctx.Err() != nil {
			return "", classifyAnthropic(err)
		}
		return "", &StreamingError{SDKError: SDKError{Message: err.Error(), Cause: err}}
	}
	return full.String(), nil
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return ClassifyError(anthropicProvider, err)
	}

	var retryAfter time.Duration
	if apiErr.Response != nil {
		if secs, perr := strconv.Atoi(apiErr.Response.Header.Get("Retry-After")); perr == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}
	e := ErrorFromStatusCode(anthropicProvider, apiErr.StatusCode, apiErr.Error(), retryAfter)
	setCause(e, err)
	return e
}
