package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // public origin used to build checkout redirect URLs
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	Toss struct {
		SecretKey  string `yaml:"secret_key"`
		BaseURL    string `yaml:"base_url"`
		SuccessURL string `yaml:"success_url"`
		FailURL    string `yaml:"fail_url"`
	} `yaml:"toss"`
}

type AnalysisConfig struct {
	WebhookURL     string        `yaml:"webhook_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	RatePerMinute  int           `yaml:"rate_per_minute"` // per-user upload rate limit
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // HMAC secret of the auth service's access tokens
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	Workers    int           `yaml:"workers"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Auth       AuthConfig       `yaml:"auth"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML config. Required secrets are
// checked here so a misconfigured process fails at startup, not on the
// first provider call.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Payment.Toss.BaseURL == "" {
		cfg.Payment.Toss.BaseURL = "https://api.tosspayments.com"
	}
	if cfg.Payment.Toss.SuccessURL == "" && cfg.Server.BaseURL != "" {
		cfg.Payment.Toss.SuccessURL = cfg.Server.BaseURL + "/payment/success"
	}
	if cfg.Payment.Toss.FailURL == "" && cfg.Server.BaseURL != "" {
		cfg.Payment.Toss.FailURL = cfg.Server.BaseURL + "/payment/fail"
	}
	if cfg.Analysis.Timeout <= 0 {
		cfg.Analysis.Timeout = 120 * time.Second
	}
	if cfg.Analysis.MaxUploadBytes <= 0 {
		cfg.Analysis.MaxUploadBytes = 5 * 1024 * 1024
	}
	if cfg.Analysis.RatePerMinute <= 0 {
		cfg.Analysis.RatePerMinute = 10
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	if cfg.Reconciler.Workers <= 0 {
		cfg.Reconciler.Workers = 4
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Payment.Toss.SecretKey == "" {
		return nil, errors.New("payment.toss.secret_key is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Analysis.WebhookURL == "" {
		return nil, errors.New("analysis.webhook_url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
