package unifiedllm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	MaxOutput     int      `json:"max_output"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog. The first entry per provider is its
// default.
var Models = []ModelInfo{
	// Anthropic
	{ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5", ContextWindow: 200000, MaxOutput: 16384, Aliases: []string{"sonnet"}},
	{ID: "claude-opus-4-1", Provider: "anthropic", DisplayName: "Claude Opus 4.1", ContextWindow: 200000, MaxOutput: 32000, Aliases: []string{"opus"}},
	{ID: "claude-3-5-haiku-latest", Provider: "anthropic", DisplayName: "Claude Haiku 3.5", ContextWindow: 200000, MaxOutput: 8192, Aliases: []string{"haiku"}},

	// OpenAI
	{ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o mini", ContextWindow: 128000, MaxOutput: 16384, Aliases: []string{"4o-mini"}},
	{ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o", ContextWindow: 128000, MaxOutput: 16384, Aliases: []string{"4o"}},

	// Local
	{ID: "llama3.1", Provider: "ollama", DisplayName: "Llama 3.1", ContextWindow: 128000, MaxOutput: 4096},
}

// GetModelInfo returns the catalog entry for a model id or alias, or nil.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	var result []ModelInfo
	for _, m := range Models {
		if provider == "" || m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// DefaultModel returns the default model for a provider, or nil.
func DefaultModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}

// ResolveModel expands an alias to a model id. Empty selects the provider
// default; unknown ids are passed through.
func ResolveModel(provider, model string) string {
	if model == "" {
		if info := DefaultModel(provider); info != nil {
			return info.ID
		}
		return ""
	}
	if info := GetModelInfo(model); info != nil {
		return info.ID
	}
	return model
}
