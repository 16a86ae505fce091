package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "TUTORD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "provider.api_key", typ: kString, env: "TUTORD_PROVIDER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Provider.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.APIKey },
	},
	{
		key: "provider.base_url", typ: kString, env: "TUTORD_PROVIDER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Provider.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.BaseURL },
	},
	{
		key: "provider.model", typ: kString, env: "TUTORD_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Provider.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.Model },
	},
	{
		key: "provider.embed_model", typ: kString, env: "TUTORD_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Provider.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Provider.EmbedModel },
	},
	{
		key: "provider.max_tokens", typ: kInt, env: "TUTORD_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Provider.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Provider.MaxTokens },
	},
	{
		key: "provider.temperature", typ: kFloat, env: "TUTORD_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Provider.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Provider.Temperature },
	},
	{
		key: "provider.cost_per_1k_tokens", typ: kFloat, env: "TUTORD_COST_PER_1K_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Provider.CostPer1KTokens = v.(float64) },
		extract: func(cfg Config) any { return cfg.Provider.CostPer1KTokens },
	},
	{
		key: "provider.max_retries", typ: kInt, env: "TUTORD_MAX_RETRIES",
		apply:   func(cfg *Config, v any) { cfg.Provider.MaxRetries = v.(int) },
		extract: func(cfg Config) any { return cfg.Provider.MaxRetries },
	},
	{
		key: "provider.backoff_base_ms", typ: kInt, env: "TUTORD_BACKOFF_BASE_MS",
		apply:   func(cfg *Config, v any) { cfg.Provider.BackoffBaseMs = v.(int) },
		extract: func(cfg Config) any { return cfg.Provider.BackoffBaseMs },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TUTORD_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "engine.top_k", typ: kInt, env: "TUTORD_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Engine.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.TopK },
	},
	{
		key: "engine.max_context_chars", typ: kInt, env: "TUTORD_MAX_CONTEXT_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Engine.MaxContextChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.MaxContextChars },
	},
	{
		key: "engine.readability_words", typ: kInt, env: "TUTORD_READABILITY_WORDS",
		apply:   func(cfg *Config, v any) { cfg.Engine.ReadabilityWords = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.ReadabilityWords },
	},
	{
		key: "engine.cleanup_every", typ: kInt, env: "TUTORD_CLEANUP_EVERY",
		apply:   func(cfg *Config, v any) { cfg.Engine.CleanupEvery = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.CleanupEvery },
	},
	{
		key: "log.level", typ: kString, env: "TUTORD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
