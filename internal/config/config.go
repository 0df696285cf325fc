package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ErrMissing marks a required configuration value that was absent at startup.
// Callers check it with errors.Is to distinguish config failures from runtime ones.
var ErrMissing = errors.New("required configuration missing")

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Redis (job queue — optional; one-shot rendering works without it)
	RedisURL string

	// Telegram (delivery sink — the one credential the pipeline cannot run without)
	TelegramToken string

	// Gemini (preferred scene planner)
	GeminiKey   string
	GeminiModel string

	// OpenAI (alternate scene planner — used when only OPENAI_API_KEY is set)
	OpenAIKey   string
	OpenAIModel string

	// Image generation
	ImageEndpoint string // Templated GET endpoint, prompt appended as a path segment

	// Speech synthesis
	TTSVoice string

	// Rendering
	ScaleMode string // "fill" or "fit"
	TempDir   string

	// Retry tuning for remote calls
	MaxAttempts int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		TelegramToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		GeminiKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ImageEndpoint:      getEnv("IMAGE_ENDPOINT", "https://image.pollinations.ai/prompt/"),
		TTSVoice:           getEnv("TTS_VOICE", "en-US-GuyNeural"),
		ScaleMode:          getEnv("SCALE_MODE", "fill"),
		TempDir:            getEnv("TEMP_DIR", "/tmp/promptreel"),
		MaxAttempts:        getEnvInt("MAX_ATTEMPTS", 8),
	}

	// The delivery sink has no fallback — fail fast before any work is done.
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("%w: TELEGRAM_BOT_TOKEN", ErrMissing)
	}

	if cfg.ScaleMode != "fill" && cfg.ScaleMode != "fit" {
		return nil, fmt.Errorf("SCALE_MODE must be \"fill\" or \"fit\", got %q", cfg.ScaleMode)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
