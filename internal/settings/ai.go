package settings

import (
	"context"
	"strconv"
	"strings"
)

const (
	KeyAPIEndpoint = "ai_api_endpoint"
	KeyAPIKey      = "ai_api_key"
	KeyModelName   = "ai_model_name"
	KeyTemperature = "ai_temperature"
	KeyMaxTokens   = "ai_max_tokens"

	DefaultAPIEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModelName   = "google/gemini-2.5-flash-image"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

// AIConfig describes the image generation endpoint.
type AIConfig struct {
	APIEndpoint string  `yaml:"api_endpoint"`
	APIKey      string  `yaml:"api_key"`
	ModelName   string  `yaml:"model_name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

func DefaultAIConfig() AIConfig {
	return AIConfig{
		APIEndpoint: DefaultAPIEndpoint,
		ModelName:   DefaultModelName,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// IsValid reports whether endpoint, key and model are all set.
func (c AIConfig) IsValid() bool {
	return strings.TrimSpace(c.APIEndpoint) != "" &&
		strings.TrimSpace(c.APIKey) != "" &&
		strings.TrimSpace(c.ModelName) != ""
}

// MaskedKey shows only the last four characters of the API key.
func (c AIConfig) MaskedKey() string {
	if len(c.APIKey) <= 4 {
		return strings.Repeat("*", len(c.APIKey))
	}
	return strings.Repeat("*", len(c.APIKey)-4) + c.APIKey[len(c.APIKey)-4:]
}

// LoadAIConfig reads the AI keys, falling back to defaults for anything
// missing or unparsable.
func LoadAIConfig(ctx context.Context, repo Repository) (AIConfig, error) {
	cfg := DefaultAIConfig()

	values, err := repo.List(ctx)
	if err != nil {
		return cfg, err
	}

	if v, ok := values[KeyAPIEndpoint]; ok && v != "" {
		cfg.APIEndpoint = v
	}
	if v, ok := values[KeyAPIKey]; ok {
		cfg.APIKey = v
	}
	if v, ok := values[KeyModelName]; ok && v != "" {
		cfg.ModelName = v
	}
	if v, ok := values[KeyTemperature]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = f
		}
	}
	if v, ok := values[KeyMaxTokens]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTokens = n
		}
	}

	return cfg, nil
}

func SaveAIConfig(ctx context.Context, repo Repository, cfg AIConfig) error {
	values := map[string]string{
		KeyAPIEndpoint: cfg.APIEndpoint,
		KeyAPIKey:      cfg.APIKey,
		KeyModelName:   cfg.ModelName,
		KeyTemperature: strconv.FormatFloat(cfg.Temperature, 'f', -1, 64),
		KeyMaxTokens:   strconv.Itoa(cfg.MaxTokens),
	}

	for _, key := range aiKeys {
		if err := repo.Set(ctx, key, values[key]); err != nil {
			return err
		}
	}
	return nil
}

func ClearAIConfig(ctx context.Context, repo Repository) error {
	for _, key := range aiKeys {
		if err := repo.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

var aiKeys = []string{KeyAPIEndpoint, KeyAPIKey, KeyModelName, KeyTemperature, KeyMaxTokens}
