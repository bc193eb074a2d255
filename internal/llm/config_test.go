package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Zero(t, config.Temperature)
	assert.Positive(t, config.MaxOutputTokens)
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{Models: map[ModelTier]string{TierLite: "fallback-model"}}
	assert.Equal(t, "fallback-model", config.GetModel("unknown"))

	config = &Config{Models: map[ModelTier]string{TierStandard: "std", TierLite: "lite"}}
	assert.Equal(t, "std", config.GetModel("unknown"))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{Models: map[ModelTier]string{}}
	assert.Empty(t, config.GetModel(TierLite))
}

func TestWithModel(t *testing.T) {
	original := DefaultConfig()
	modified := original.WithModel(TierLite, "custom-model")

	assert.Equal(t, "custom-model", modified.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash-lite", original.GetModel(TierLite))
	assert.Equal(t, original.MaxOutputTokens, modified.MaxOutputTokens)
}
