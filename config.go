package historyquiz

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration shared by the commands
type Config struct {
	LogLevel  string
	LogFormat string
	LogDir    string

	StoreDriver string // sqlite|postgres|redis|memory
	StoreDSN    string
	RedisURL    string

	LLMProvider LLMProvider
	OpenAIKey   string
	XAIKey      string
	LLMModel    string

	FontDir           string
	GenerationTimeout time.Duration
	// GenerationsPerHour caps generate requests per web client; 0 disables the cap.
	GenerationsPerHour int

	Port           string
	SessionSecret  string
	AllowedOrigins []string
}

// LoadConfig reads configuration from environment variables. A .env file
// is loaded first if present.
func LoadConfig() Config {
	_ = godotenv.Load() // .env is optional

	timeout, err := time.ParseDuration(getEnv("GENERATION_TIMEOUT", "10m"))
	if err != nil {
		timeout = 10 * time.Minute
	}

	perHour, err := strconv.Atoi(getEnv("GENERATIONS_PER_HOUR", "20"))
	if err != nil || perHour < 0 {
		perHour = 20
	}

	return Config{
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "pretty"),
		LogDir:             getEnv("LOG_DIR", "log"),
		StoreDriver:        getEnv("STORE_DRIVER", DriverSQLite),
		StoreDSN:           os.Getenv("STORE_DSN"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		LLMProvider:        LLMProvider(getEnv("LLM_PROVIDER", string(ProviderOpenAI))),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		XAIKey:             os.Getenv("XAI_API_KEY"),
		LLMModel:           os.Getenv("LLM_MODEL"),
		FontDir:            getEnv("FONT_DIR", "fonts"),
		GenerationTimeout:  timeout,
		GenerationsPerHour: perHour,
		Port:               getEnv("PORT", "8180"),
		SessionSecret:      getEnv("SESSION_SECRET", "change-this-to-a-secure-random-string"),
		AllowedOrigins:     parseList(os.Getenv("ALLOWED_ORIGINS")),
	}
}

// LLMConfig returns credentials for the configured provider, or ok=false
// when no key is set for it.
func (c Config) LLMConfig() (LLMConfig, bool) {
	key := c.OpenAIKey
	if c.LLMProvider == ProviderGrok {
		key = c.XAIKey
	}
	if key == "" {
		return LLMConfig{}, false
	}
	return LLMConfig{Provider: c.LLMProvider, APIKey: key, Model: c.LLMModel}, true
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseList splits a comma-separated string into trimmed, non-empty parts.
func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
