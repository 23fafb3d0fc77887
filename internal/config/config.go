// Package config loads server settings from the environment.
//
// SOURCES, lowest priority first:
//  1. defaults set below
//  2. a .env file (optional; variables already in the environment win,
//     godotenv never overrides them)
//  3. environment variables
//
// Optional integrations switch themselves off when their settings are
// empty: no JWT_SECRET → no auth routes, no Google credentials → no OAuth
// routes, no REDIS_ADDR → no catalog cache, no SENDGRID_API_KEY → emails
// are logged instead of sent.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     int
	LogLevel slog.Level
	DBPath   string
	BaseURL  string

	JWTSecret   string
	SessionTTL  time.Duration
	RememberTTL time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackBase string

	RedisAddr       string
	CatalogCacheTTL time.Duration

	SendGridAPIKey           string
	MailFrom                 string
	RequireEmailVerification bool
}

// AuthEnabled reports whether a JWT secret is configured.
func (c *Config) AuthEnabled() bool { return c.JWTSecret != "" }

// GoogleEnabled reports whether Google OAuth can be offered.
func (c *Config) GoogleEnabled() bool {
	return c.AuthEnabled() && c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PATH", "data/reviews.db")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("REMEMBER_TTL", 30*24*time.Hour)
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_CALLBACK_BASE", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CATALOG_CACHE_TTL", 5*time.Minute)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM", "noreply@localhost")
	v.SetDefault("REQUIRE_EMAIL_VERIFICATION", false)
}

// Load reads dotEnvPath (ignored if missing) and the environment.
func Load(dotEnvPath string) (*Config, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, fmt.Errorf("config: loading %s: %w", dotEnvPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: checking %s: %w", dotEnvPath, err)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	defaults(v)
	v.AutomaticEnv()

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:                     v.GetInt("PORT"),
		LogLevel:                 level,
		DBPath:                   v.GetString("DB_PATH"),
		BaseURL:                  strings.TrimRight(v.GetString("BASE_URL"), "/"),
		JWTSecret:                v.GetString("JWT_SECRET"),
		SessionTTL:               v.GetDuration("SESSION_TTL"),
		RememberTTL:              v.GetDuration("REMEMBER_TTL"),
		GoogleClientID:           v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:       v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackBase:       v.GetString("GOOGLE_CALLBACK_BASE"),
		RedisAddr:                v.GetString("REDIS_ADDR"),
		CatalogCacheTTL:          v.GetDuration("CATALOG_CACHE_TTL"),
		SendGridAPIKey:           v.GetString("SENDGRID_API_KEY"),
		MailFrom:                 v.GetString("MAIL_FROM"),
		RequireEmailVerification: v.GetBool("REQUIRE_EMAIL_VERIFICATION"),
	}
	if cfg.GoogleCallbackBase == "" {
		cfg.GoogleCallbackBase = cfg.BaseURL
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.SessionTTL <= 0 || c.RememberTTL <= 0 {
		return errors.New("config: SESSION_TTL and REMEMBER_TTL must be positive")
	}
	if c.RememberTTL < c.SessionTTL {
		return errors.New("config: REMEMBER_TTL must not be shorter than SESSION_TTL")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	return nil
}
