package config

import (
	"strconv"
	"strings"
	"testing"
)

// mapBackend is an in-memory Backend for tests.
type mapBackend struct {
	data map[string]any
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string]any)}
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return "", false, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case string:
		i, err := strconv.Atoi(val)
		return i, true, err
	}
	return 0, false, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return nil
}
func (b *mapBackend) Delete(key string) error { delete(b.data, key); return nil }

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("TUTORD_PROVIDER_API_KEY", "sk-test")

	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Provider.Model != "gpt-4o-mini" || cfg.Provider.EmbedModel != "text-embedding-3-small" {
		t.Errorf("models = %q / %q", cfg.Provider.Model, cfg.Provider.EmbedModel)
	}
	if cfg.Provider.MaxTokens != 1600 || cfg.Provider.Temperature != 0.7 {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Engine.TopK != 5 || cfg.Engine.MaxContextChars != 8000 || cfg.Engine.CleanupEvery != 100 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Provider.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnvOverrides(t)

	_, err := loadWith(newMapBackend())
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "TUTORD_PROVIDER_API_KEY") {
		t.Errorf("error does not name the env var: %v", err)
	}
}

func TestLoad_BackendOverrides(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("TUTORD_PROVIDER_API_KEY", "sk-test")

	b := newMapBackend()
	b.SetInt("server.port", 9000)
	b.SetString("provider.model", "gpt-4o")
	b.SetString("provider.temperature", "0.2")
	b.SetInt("engine.cleanup_every", 25)

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Provider.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.Provider.Temperature != 0.2 {
		t.Errorf("temperature = %v", cfg.Provider.Temperature)
	}
	if cfg.Engine.CleanupEvery != 25 {
		t.Errorf("cleanup every = %d", cfg.Engine.CleanupEvery)
	}
}

func TestLoad_EnvOverridesBackend(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("TUTORD_PROVIDER_API_KEY", "sk-test")
	t.Setenv("TUTORD_SERVER_PORT", "7777")
	t.Setenv("TUTORD_MODEL", "env-model")
	t.Setenv("TUTORD_TEMPERATURE", "0.9")

	b := newMapBackend()
	b.SetInt("server.port", 9000)
	b.SetString("provider.model", "file-model")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, env should win over file", cfg.Server.Port)
	}
	if cfg.Provider.Model != "env-model" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.Provider.Temperature != 0.9 {
		t.Errorf("temperature = %v", cfg.Provider.Temperature)
	}
}

func TestLoad_MalformedEnvFallsBack(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("TUTORD_PROVIDER_API_KEY", "sk-test")
	t.Setenv("TUTORD_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d, want default on parse failure", cfg.Server.Port)
	}
}

func TestShowAll_HidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Provider.APIKey = "sk-secret"

	for _, k := range ShowAll(cfg) {
		if k.Key == "provider.api_key" {
			t.Error("secret key exposed by ShowAll")
		}
		if strings.Contains(k.Value, "sk-secret") {
			t.Errorf("secret value leaked via %s", k.Key)
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) == 0 {
		t.Fatal("no valid keys")
	}
	for _, k := range keys {
		if k == "provider.api_key" {
			t.Error("secret listed as settable key")
		}
	}
}
