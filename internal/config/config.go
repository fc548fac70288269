package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL        string
	TelegramToken string
	HTTPTimeout   time.Duration
	NoticeTTL     time.Duration
	LogLevel      string
	LogPretty     bool
	BotDebug      bool
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		APIURL:        os.Getenv("IBADAH_API_URL"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("IBADAH_API_URL is required")
	}
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	var err error
	if cfg.HTTPTimeout, err = durationEnv("IBADAH_HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.NoticeTTL, err = durationEnv("IBADAH_NOTICE_TTL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.LogPretty, err = boolEnv("LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if cfg.BotDebug, err = boolEnv("TELEGRAM_DEBUG", false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}
