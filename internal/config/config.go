package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const (
	defaultPort        = "3000"
	defaultVerifyToken = "webdevsoft_token"
	defaultBaseURL     = "https://graph.facebook.com"
	defaultAPIVersion  = "v18.0"
	defaultTimeout     = 15 * time.Second
	defaultMaxBody     = 100 << 10
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	WhatsApp WhatsAppConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
}

// WhatsAppConfig contains options for the Meta WhatsApp Cloud API. Access tokens are
// supplied per request by callers and are deliberately absent here.
type WhatsAppConfig struct {
	VerifyToken string
	AppSecret   string
	BaseURL     string
	APIVersion  string
	Timeout     time.Duration
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	timeout, err := getDurationWithDefault("WHATSAPP_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, err
	}

	maxBody, err := getInt64WithDefault("MAX_BODY_BYTES", defaultMaxBody)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getenvWithDefault("PORT", defaultPort),
			AllowedOrigins: splitList(getenvWithDefault("CORS_ALLOWED_ORIGINS", "*")),
			MaxBodyBytes:   maxBody,
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		WhatsApp: WhatsAppConfig{
			VerifyToken: getenvWithDefault("WEBHOOK_VERIFY_TOKEN", defaultVerifyToken),
			AppSecret:   os.Getenv("WHATSAPP_APP_SECRET"),
			BaseURL:     getenvWithDefault("WHATSAPP_BASE_URL", defaultBaseURL),
			APIVersion:  getenvWithDefault("WHATSAPP_API_VERSION", defaultAPIVersion),
			Timeout:     timeout,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("PORT must be provided")
	}

	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be positive")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	switch {
	case c.WhatsApp.VerifyToken == "":
		return errors.New("WEBHOOK_VERIFY_TOKEN must not be empty")
	case c.WhatsApp.BaseURL == "":
		return errors.New("WHATSAPP_BASE_URL must not be empty")
	case c.WhatsApp.APIVersion == "":
		return errors.New("WHATSAPP_API_VERSION must not be empty")
	case c.WhatsApp.Timeout <= 0:
		return errors.New("WHATSAPP_TIMEOUT must be positive")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDurationWithDefault(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration: %w", key, err)
	}
	return d, nil
}

func getInt64WithDefault(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid integer: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
