package unifiedllm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements Model.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
	system   string
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	system      string
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key for the adapter.
func WithAPIKey(key string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.apiKey = key
	}
}

// WithModel sets the model for the adapter. Catalog aliases are accepted.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the max tokens per reply.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithSystemPrompt sets a system prompt sent with every request.
func WithSystemPrompt(s string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.system = s
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates a new GollmAdapter for the given provider.
// If apiKey is empty, gollm will attempt to read it from environment variables.
func NewGollmAdapter(provider string, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		apiKey:      apiKey,
		maxTokens:   4096,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := ResolveModel(provider, cfg.model)
	if model == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: fmt.Sprintf("no model configured for provider %q", provider)}}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // model failures are terminal for the session
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("failed to create gollm LLM for provider %s", provider),
			Cause:   err,
		}}
	}

	return &GollmAdapter{
		provider: provider,
		llm:      llm,
		model:    model,
		system:   cfg.system,
	}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{
		provider: provider,
		llm:      llm,
	}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// ModelID returns the resolved model id.
func (a *GollmAdapter) ModelID() string {
	return a.model
}

func (a *GollmAdapter) prompt(text string) *gollm.Prompt {
	var opts []gollm.PromptOption
	if a.system != "" {
		opts = append(opts, gollm.WithSystemPrompt(a.system, gollm.CacheTypeEphemeral))
	}
	return gollm.NewPrompt(text, opts...)
}

// Generate implements Model.
func (a *GollmAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := a.llm.Generate(ctx, a.prompt(prompt))
	if err != nil {
		return "", ClassifyError(a.provider, err)
	}
	return text, nil
}

// GenerateStreaming implements Model. Providers without streaming support
// deliver the whole reply as a single chunk.
func (a *GollmAdapter) GenerateStreaming(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	if !a.llm.SupportsStreaming() {
		text, err := a.Generate(ctx, prompt)
		if err != nil {
			return "", err
		}
		if text != "" {
			onChunk(text)
		}
		return text, nil
	}

	stream, err := a.llm.Stream(ctx, a.prompt(prompt))
	if err != nil {
		return "", ClassifyError(a.provider, err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		token, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ClassifyError(a.provider, ctx.Err())
			}
			return "", &StreamingError{SDKError: SDKError{Message: err.Error(), Cause: err}}
		}
		if token == nil || token.Text == "" {
			continue
		}
		full.WriteString(token.Text)
		onChunk(token.Text)
	}
	return full.String(), nil
}
