package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// mstock broker credentials. Required only when DEMO_MODE=false.
	MStockAPIKey     string
	MStockClientCode string
	MStockPassword   string
	MStockTOTPSecret string

	// Infrastructure
	HTTPAddr      string
	MetricsAddr   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string

	// Data source: simulated feed instead of the broker API.
	DemoMode bool

	// Notifications (each backend enabled when its vars are set)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Broker credentials are enforced lazily: a demo-mode deployment needs none.
func Load() *Config {
	cfg := &Config{
		MStockAPIKey:     getEnv("MSTOCK_API_KEY", ""),
		MStockClientCode: getEnv("MSTOCK_CLIENT_CODE", ""),
		MStockPassword:   getEnv("MSTOCK_PASSWORD", ""),
		MStockTOTPSecret: getEnv("MSTOCK_TOTP_SECRET", ""),

		HTTPAddr:      getEnv("HTTP_ADDR", ":8000"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/trades.db"),

		DemoMode: getBool("DEMO_MODE", true),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if !cfg.DemoMode {
		cfg.MStockAPIKey = mustEnv("MSTOCK_API_KEY")
		cfg.MStockClientCode = mustEnv("MSTOCK_CLIENT_CODE")
		cfg.MStockPassword = mustEnv("MSTOCK_PASSWORD")
		cfg.MStockTOTPSecret = mustEnv("MSTOCK_TOTP_SECRET")
	}
	return cfg
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}
