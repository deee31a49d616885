package unifiedllm

import "context"

// Model is the interface every model backend must implement. A prompt is
// the fully rendered text for one turn; the reply is the model's raw text.
type Model interface {
	// Generate sends a blocking request and returns the full reply.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStreaming delivers the reply incrementally through onChunk and
	// returns the full text once the stream ends.
	GenerateStreaming(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}

// Namer is implemented by models that can report their provider.
type Namer interface {
	Name() string
}
