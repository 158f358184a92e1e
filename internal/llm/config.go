// Package llm provides centralized LLM configuration and client abstractions
// for the correction engine.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: classification, short extraction
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: semantic span search, transitions
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning: span rewriting, chapter rewrite/merge
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is the OpenAI provider (future)
	ProviderOpenAI Provider = "openai"
)

// Sampling controls randomness and output size for a single generation call.
type Sampling struct {
	// Temperature in [0, 2]. Low values keep rewrites close to the original
	// voice; variation requests raise it per variation index so repeated
	// calls diverge instead of collapsing to the same text.
	Temperature float32
	// MaxOutputTokens caps the response length. Zero means provider default.
	MaxOutputTokens int32
}

// ConsistencySampling is the deterministic-leaning policy used for
// voice-preserving rewrites.
func ConsistencySampling() Sampling {
	return Sampling{Temperature: 0.2}
}

// VariationSampling returns an increasingly random policy for the nth
// alternative phrasing of repeated content.
func VariationSampling(index int) Sampling {
	temp := 0.85 + 0.05*float32(index)
	if temp > 1.2 {
		temp = 1.2
	}
	return Sampling{Temperature: temp}
}

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider: c.Provider,
		Models:   make(map[ModelTier]string),
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
