package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type GatewayConfig struct {
	Razorpay struct {
		KeyID         string `yaml:"key_id"`
		KeySecret     string `yaml:"key_secret"`
		WebhookSecret string `yaml:"webhook_secret"`
		BaseURL       string `yaml:"base_url"` // override for tests
	} `yaml:"razorpay"`
}

type AuthConfig struct {
	SessionSecret     string `yaml:"session_secret"`      // account + temp token signing
	AdminSecret       string `yaml:"admin_secret"`        // admin session cookie signing
	SessionCookieName string `yaml:"session_cookie_name"` // account session cookie
	AdminCookieName   string `yaml:"admin_cookie_name"`   // admin session cookie
}

type ReconcileConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"` // how old a processing payment must be
	BatchSize  int           `yaml:"batch_size"`
	Interval   time.Duration `yaml:"interval"` // 0 disables the background sweep
}

type RateLimitConfig struct {
	OrderPerMinute  int `yaml:"order_per_minute"`
	RefundPerMinute int `yaml:"refund_per_minute"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Auth      AuthConfig      `yaml:"auth"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Gateway.Razorpay.KeyID == "" || cfg.Gateway.Razorpay.KeySecret == "" {
		return nil, errors.New("gateway.razorpay key_id and key_secret are required")
	}
	if cfg.Gateway.Razorpay.WebhookSecret == "" {
		return nil, errors.New("gateway.razorpay.webhook_secret is required")
	}
	if cfg.Auth.SessionSecret == "" || cfg.Auth.AdminSecret == "" {
		return nil, errors.New("auth.session_secret and auth.admin_secret are required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Auth.SessionCookieName == "" {
		cfg.Auth.SessionCookieName = "lp_session"
	}
	if cfg.Auth.AdminCookieName == "" {
		cfg.Auth.AdminCookieName = "lp_admin"
	}
	if cfg.Reconcile.StaleAfter <= 0 {
		cfg.Reconcile.StaleAfter = 10 * time.Minute
	}
	if cfg.Reconcile.BatchSize <= 0 {
		cfg.Reconcile.BatchSize = 50
	}
	if cfg.RateLimit.OrderPerMinute <= 0 {
		cfg.RateLimit.OrderPerMinute = 10
	}
	if cfg.RateLimit.RefundPerMinute <= 0 {
		cfg.RateLimit.RefundPerMinute = 5
	}
}
