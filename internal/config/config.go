package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the server and worker processes.
type Config struct {
	HTTPAddr string         `yaml:"http_addr" env:"HTTP_ADDR"`
	Database DatabaseConfig `yaml:"database"`
	RedisURL string         `yaml:"redis_url" env:"REDIS_URL"`
	AMQPURL  string         `yaml:"amqp_url" env:"AMQP_URL"`
	Mail     MailConfig     `yaml:"mail"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Log      LogConfig      `yaml:"log"`

	ParseRatePerMinute int `yaml:"parse_rate_per_minute" env:"PARSE_RATE_PER_MINUTE"`
}

// DatabaseConfig holds the Postgres connection settings. URL wins over the
// individual fields when both are set.
type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     string `yaml:"port" env:"DB_PORT"`
	Name     string `yaml:"name" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// MailConfig selects and configures the outbound transport.
type MailConfig struct {
	// Provider is one of auto, smtp, ses, simulated. auto picks smtp when
	// EMAIL_USER/EMAIL_PASS are set, then ses, then simulated.
	Provider string `yaml:"provider" env:"MAIL_PROVIDER"`
	FromName string `yaml:"from_name" env:"MAIL_FROM_NAME"`

	SMTPUser string `yaml:"smtp_user" env:"EMAIL_USER"`
	SMTPPass string `yaml:"smtp_pass" env:"EMAIL_PASS"`
	SMTPHost string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort int    `yaml:"smtp_port" env:"SMTP_PORT"`

	SESRegion    string `yaml:"ses_region" env:"SES_REGION"`
	SESAccessKey string `yaml:"ses_access_key" env:"SES_ACCESS_KEY"`
	SESSecretKey string `yaml:"ses_secret_key" env:"SES_SECRET_KEY"`
	SESFrom      string `yaml:"ses_from" env:"SES_FROM"`
}

// DispatchConfig tunes the campaign dispatch engine.
type DispatchConfig struct {
	TickInterval        time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	SendConcurrency     int           `yaml:"send_concurrency" env:"SEND_CONCURRENCY"`
	CampaignConcurrency int           `yaml:"campaign_concurrency" env:"CAMPAIGN_CONCURRENCY"`
	LockTTL             time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`
}

// TicksPerMinute is how many engine ticks fit in one minute.
func (d DispatchConfig) TicksPerMinute() float64 {
	return float64(time.Minute) / float64(d.TickInterval)
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		HTTPAddr: ":8080",
		Database: DatabaseConfig{Host: "localhost", Port: "5432", SSLMode: "disable"},
		Mail: MailConfig{
			Provider:  "auto",
			FromName:  "Scoutier Outreach",
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SESRegion: "us-east-1",
		},
		Dispatch: DispatchConfig{
			TickInterval:        6 * time.Second,
			SendConcurrency:     4,
			CampaignConcurrency: 8,
			LockTTL:             2 * time.Minute,
		},
		Log:                LogConfig{Level: "info", Format: "json"},
		ParseRatePerMinute: 60,
	}
}

// Load builds the configuration from defaults, an optional YAML file at path
// and the environment (a .env file is loaded first if present).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, relying on OS environment variables")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the dispatcher cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Dispatch.TickInterval <= 0 {
		errs = append(errs, errors.New("dispatch.tick_interval must be positive"))
	}
	if c.Dispatch.SendConcurrency < 1 {
		errs = append(errs, errors.New("dispatch.send_concurrency must be at least 1"))
	}
	if c.Dispatch.CampaignConcurrency < 1 {
		errs = append(errs, errors.New("dispatch.campaign_concurrency must be at least 1"))
	}
	if c.Dispatch.LockTTL <= 0 {
		errs = append(errs, errors.New("dispatch.lock_ttl must be positive"))
	}
	switch c.Mail.Provider {
	case "auto", "smtp", "ses", "simulated":
	default:
		errs = append(errs, fmt.Errorf("mail.provider %q is not one of auto, smtp, ses, simulated", c.Mail.Provider))
	}
	return errors.Join(errs...)
}
