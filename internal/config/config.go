// Package config provides configuration loading and validation for the
// application. All configuration is assembled once at process start into a
// single immutable Config value; nothing in the rest of the tree reads the
// environment directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration.
type Config struct {
	Env          string
	Port         string
	Debug        bool
	DBPath       string
	SecretKey    string
	CronAPIToken string

	// Business rules.
	DeadlineHours       *int // PRAZO_HORAS; nil = no deadline
	EditHorizonDays     int  // DIAS_ANTECEDENCIA
	BackupRetentionDays int

	// Notification scheduler.
	NotifWarnHours   int
	NotifScanSeconds int

	SMTP   SMTPConfig
	Resend ResendConfig
	Twilio TwilioConfig
}

// SMTPConfig holds optional outbound email configuration.
type SMTPConfig struct {
	Host, Port, User, Password, From string
}

// Configured reports whether SMTP has been set up.
func (c SMTPConfig) Configured() bool { return c.Host != "" && c.From != "" }

// ResendConfig holds optional outbound email configuration for the Resend
// HTTPS API. The SMTP relay named by the SMTP_* variables is the external
// gateway collaborator; the in-core email channel posts through Resend.
type ResendConfig struct {
	APIKey, From string
}

// Configured reports whether the email channel has been set up.
func (c ResendConfig) Configured() bool { return c.APIKey != "" && c.From != "" }

// TwilioConfig holds optional outbound SMS configuration.
type TwilioConfig struct {
	SID, Token, From string
}

// Configured reports whether the SMS channel has been set up.
func (c TwilioConfig) Configured() bool { return c.SID != "" && c.Token != "" && c.From != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Env:          getEnv("ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		Debug:        getEnv("DEBUG", "false") == "true",
		DBPath:       getEnv("DB_PATH", "mess.db"),
		SecretKey:    getEnv("SECRET_KEY", ""),
		CronAPIToken: getEnv("CRON_API_TOKEN", ""),

		EditHorizonDays:     getEnvInt("DIAS_ANTECEDENCIA", 15),
		BackupRetentionDays: getEnvInt("BACKUP_RETENCAO_DIAS", 30),
		NotifWarnHours:      getEnvInt("NOTIF_WARN_HOURS", 24),
		NotifScanSeconds:    getEnvInt("NOTIF_SCAN_SECONDS", 3600),

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", ""),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		Resend: ResendConfig{
			APIKey: getEnv("RESEND_API_KEY", ""),
			From:   getEnv("RESEND_FROM", getEnv("SMTP_FROM", "")),
		},
		Twilio: TwilioConfig{
			SID:   getEnv("TWILIO_SID", ""),
			Token: getEnv("TWILIO_TOKEN", ""),
			From:  getEnv("TWILIO_FROM", ""),
		},
	}

	switch v, ok := os.LookupEnv("PRAZO_HORAS"); {
	case !ok:
		h := 48
		cfg.DeadlineHours = &h
	case v == "" || v == "none" || v == "null":
		cfg.DeadlineHours = nil
	default:
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Str("value", v).Msg("invalid PRAZO_HORAS, defaulting to 48")
			n = 48
		}
		cfg.DeadlineHours = &n
	}

	if cfg.IsProduction() {
		if cfg.SecretKey == "" {
			return nil, fmt.Errorf("SECRET_KEY must be set in production")
		}
		if cfg.CronAPIToken == "" {
			log.Warn().Msg("CRON_API_TOKEN not set — cron endpoints are disabled")
		}
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = "naval-mess-dev-insecure-key-change-me"
	}

	return cfg, nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// DeadlineDuration returns the configured deadline as a time.Duration, or
// false if no deadline is configured.
func (c *Config) DeadlineDuration() (time.Duration, bool) {
	if c.DeadlineHours == nil {
		return 0, false
	}
	return time.Duration(*c.DeadlineHours) * time.Hour, true
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer env var, using default")
	}
	return defaultValue
}
