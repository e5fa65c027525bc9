package historyquiz

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "PORT", "GENERATION_TIMEOUT", "ALLOWED_ORIGINS", "LLM_PROVIDER", "FONT_DIR"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	if cfg.StoreDriver != DriverSQLite || cfg.Port != "8180" || cfg.FontDir != "fonts" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.GenerationTimeout != 10*time.Minute {
		t.Errorf("timeout = %s", cfg.GenerationTimeout)
	}
	if cfg.LLMProvider != ProviderOpenAI || cfg.AllowedOrigins != nil {
		t.Errorf("provider = %q, origins = %v", cfg.LLMProvider, cfg.AllowedOrigins)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("GENERATION_TIMEOUT", "90s")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("LLM_PROVIDER", "grok")
	t.Setenv("XAI_API_KEY", "xai-1")
	t.Setenv("LLM_MODEL", "grok-4")

	cfg := LoadConfig()
	if cfg.StoreDriver != "redis" || cfg.GenerationTimeout != 90*time.Second {
		t.Errorf("driver = %q, timeout = %s", cfg.StoreDriver, cfg.GenerationTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %q", cfg.AllowedOrigins)
	}

	llm, ok := cfg.LLMConfig()
	if !ok || llm.Provider != ProviderGrok || llm.APIKey != "xai-1" || llm.Model != "grok-4" {
		t.Errorf("LLMConfig = %+v, %v", llm, ok)
	}
}

func TestConfigLLMConfigMissingKey(t *testing.T) {
	cfg := Config{LLMProvider: ProviderGrok, OpenAIKey: "sk-only-openai"}
	if _, ok := cfg.LLMConfig(); ok {
		t.Error("grok provider picked up the OpenAI key")
	}
}

func TestLoadConfigBadTimeout(t *testing.T) {
	t.Setenv("GENERATION_TIMEOUT", "soon")
	if got := LoadConfig().GenerationTimeout; got != 10*time.Minute {
		t.Errorf("timeout = %s", got)
	}
}
