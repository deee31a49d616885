// Package unifiedllm gives the agent loop a provider-agnostic model
// interface and the adapters behind it.
//
// A Model takes one fully rendered prompt and returns the model's raw reply,
// either in one piece (Generate) or incrementally (GenerateStreaming). Two
// adapters are provided:
//
//   - GollmAdapter wraps github.com/teilomillet/gollm and so reaches every
//     provider gollm supports (OpenAI, Anthropic, Ollama, ...).
//   - AnthropicAdapter uses the official Anthropic SDK with server-sent
//     event streaming.
//
// Neither adapter retries. Failures are mapped onto a small error taxonomy
// (NetworkError, HTTPError, AuthenticationError, RateLimitError,
// InvalidResponseError, ProviderError, ConfigurationError, StreamingError)
// and returned to the caller unchanged.
//
//	model, err := unifiedllm.NewGollmAdapter("openai", os.Getenv("OPENAI_API_KEY"),
//	    unifiedllm.WithModel("4o-mini"))
//	reply, err := model.GenerateStreaming(ctx, prompt, func(chunk string) {
//	    fmt.Print(chunk)
//	})
//
// A small catalog of known models resolves aliases and provider defaults:
//
//	unifiedllm.ResolveModel("anthropic", "sonnet") // "claude-sonnet-4-5"
package unifiedllm
