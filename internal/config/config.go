package config

import (
	"fmt"
)

type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type ProviderConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	EmbedModel      string
	MaxTokens       int
	Temperature     float64
	CostPer1KTokens float64
	MaxRetries      int
	BackoffBaseMs   int
}

type StorageConfig struct {
	DataDir string
}

type EngineConfig struct {
	TopK             int
	MaxContextChars  int
	ReadabilityWords int
	CleanupEvery     int // queries between usage-window compactions
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Provider: ProviderConfig{
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			EmbedModel:      "text-embedding-3-small",
			MaxTokens:       1600,
			Temperature:     0.7,
			CostPer1KTokens: 0.002,
			MaxRetries:      3,
			BackoffBaseMs:   500,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Engine: EngineConfig{
			TopK:             5,
			MaxContextChars:  8000,
			ReadabilityWords: 500,
			CleanupEvery:     100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/tutord/config.json, then applies TUTORD_* environment
// variable overrides. The provider API key can only come from the
// environment; it is never stored in the config file.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Provider.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: provider API key. Set it via environment variable TUTORD_PROVIDER_API_KEY")
	}

	return cfg, nil
}
