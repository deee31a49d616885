package unifiedllm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGollmAdapterName(t *testing.T) {
	// Adapter creation may fail without network-free provider setup; only
	// the successful cases are checked.
	for _, provider := range []string{"openai", "anthropic"} {
		adapter, err := NewGollmAdapter(provider, "test-key-not-real")
		if err != nil {
			t.Logf("skipping %s adapter creation: %v", provider, err)
			continue
		}
		assert.Equal(t, provider, adapter.Name())
		assert.Equal(t, ResolveModel(provider, ""), adapter.ModelID())
	}
}

func TestGollmAdapterUnknownProviderModel(t *testing.T) {
	_, err := NewGollmAdapter("nonexistent", "key")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
