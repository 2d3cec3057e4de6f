package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	Env         string
	StaticDir   string
	IndexFile   string
	FrontendURL string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// ElevenLabs
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	// Cache
	CacheBackend    string
	RedisURL        string
	GeoCacheTTL     time.Duration
	IPCacheTTL      time.Duration
	WeatherCacheTTL time.Duration

	// Orchestrator
	CaptureAttempts   int
	CaptureRetryDelay time.Duration
	FrameTTL          time.Duration

	// Sessions
	SessionSecret        string
	SessionIdleTTL       time.Duration
	SessionSweepSchedule string

	RateLimitPerMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	env := getEnvOrDefault("ENV", "development")

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", getEnvOrDefault("NODE_PORT", "3000")),
		Env:         env,
		StaticDir:   getEnvOrDefault("STATIC_DIR", "./dist"),
		IndexFile:   getEnvOrDefault("INDEX_FILE", "main.html"),
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "*"),

		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		ElevenLabsAPIKey:  getEnvOrDefault("ELEVENLABS_API_KEY", os.Getenv("ELEVEN_API_KEY")),
		ElevenLabsVoiceID: getEnvOrDefault("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModelID: getEnvOrDefault("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),

		CacheBackend:    getEnvOrDefault("CACHE_BACKEND", "memory"),
		RedisURL:        getEnvOrDefault("REDIS_URL", ""),
		GeoCacheTTL:     getEnvAsDurationOrDefault("GEO_CACHE_TTL", 60*time.Second),
		IPCacheTTL:      getEnvAsDurationOrDefault("IP_CACHE_TTL", 60*time.Second),
		WeatherCacheTTL: getEnvAsDurationOrDefault("WEATHER_CACHE_TTL", 30*time.Second),

		CaptureAttempts:   getEnvAsIntOrDefault("CAPTURE_ATTEMPTS", 2),
		CaptureRetryDelay: getEnvAsDurationOrDefault("CAPTURE_RETRY_DELAY", 50*time.Millisecond),
		FrameTTL:          getEnvAsDurationOrDefault("FRAME_TTL", 5*time.Second),

		SessionIdleTTL:       getEnvAsDurationOrDefault("SESSION_IDLE_TTL", 2*time.Hour),
		SessionSweepSchedule: getEnvOrDefault("SESSION_SWEEP_SCHEDULE", "@every 1m"),

		RateLimitPerMin: getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
	}

	if env == "production" {
		cfg.SessionSecret = mustGetEnv("SESSION_SECRET")
	} else {
		cfg.SessionSecret = getEnvOrDefault("SESSION_SECRET", "dev-session-secret")
	}

	if cfg.CacheBackend == "redis" && cfg.RedisURL == "" {
		panic("CACHE_BACKEND=redis requires REDIS_URL")
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("30s") or bare milliseconds ("30000").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
