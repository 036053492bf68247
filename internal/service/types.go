package service

// ModelPreset represents the model usage preset
type ModelPreset string

const (
	// PresetGeneration is the initial distractor request for a word.
	PresetGeneration ModelPreset = "generation"
	// PresetDiversify runs regeneration calls at elevated temperature so
	// retries do not reproduce the duplicates they are replacing.
	PresetDiversify ModelPreset = "diversify"
)

// ModelConfig holds model configuration
type ModelConfig struct {
	Temperature      float32
	TopP             float32
	TopK             int
	MaxOutputTokens  int
	ResponseMimeType string // "application/json" or "text/plain"
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	Temperature float32
	MaxTokens   int
	TopP        float32
}

// GenerateMetadata contains metadata about the generation
type GenerateMetadata struct {
	Provider     string
	Model        string
	UsedFallback bool
}

// GenerateOptions holds options for AI generation
type GenerateOptions struct {
	Model     string
	JSONMode  bool
	Overrides *ModelConfig
}

// GetPresetConfig returns the configuration for a preset
func GetPresetConfig(preset ModelPreset) ModelConfig {
	switch preset {
	case PresetDiversify:
		return ModelConfig{
			Temperature:     1.2,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 1024,
		}
	default:
		return ModelConfig{
			Temperature:     0.8,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 1024,
		}
	}
}

// GetOpenAIPresetConfig returns OpenAI configuration for a preset
func GetOpenAIPresetConfig(preset ModelPreset) OpenAIConfig {
	switch preset {
	case PresetDiversify:
		return OpenAIConfig{
			Temperature: 1.2,
			MaxTokens:   1024,
			TopP:        0.95,
		}
	default:
		return OpenAIConfig{
			Temperature: 0.8,
			MaxTokens:   1024,
			TopP:        0.95,
		}
	}
}
