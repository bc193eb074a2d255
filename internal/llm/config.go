// Package llm wraps the language model used to read careers pages.
package llm

// ModelTier selects a model by capability and cost.
type ModelTier string

const (
	// TierLite is for cheap extraction over long page text.
	TierLite ModelTier = "lite"
	// TierStandard is for tasks that need more reasoning.
	TierStandard ModelTier = "standard"
)

// Provider names an LLM vendor.
type Provider string

// ProviderGemini is the only provider wired today.
const ProviderGemini Provider = "gemini"

// Config holds model selection and generation settings.
type Config struct {
	Provider        Provider
	Models          map[ModelTier]string
	Temperature     float32
	MaxOutputTokens int32
}

// DefaultConfig returns the Gemini defaults. Extraction runs at zero
// temperature with a bounded reply size, so long listings can truncate.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		Temperature:     0,
		MaxOutputTokens: 4096,
	}
}

// GetModel returns the model for tier, falling back to standard then lite.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of c using model for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return &out
}
