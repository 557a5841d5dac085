package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	CMS       CMSConfig       `mapstructure:"cms"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Session   SessionConfig   `mapstructure:"session"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Host           string   `mapstructure:"host"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// CMSConfig holds headless CMS API configuration
type CMSConfig struct {
	Endpoints            []string `mapstructure:"endpoints"`
	APIVersion           string   `mapstructure:"api_version"`
	Dataset              string   `mapstructure:"dataset"`
	Token                string   `mapstructure:"token"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	CircuitBreakerDelay  int      `mapstructure:"circuit_breaker_delay"` // seconds
	CacheTTL             int      `mapstructure:"cache_ttl"`             // seconds
	Workers              int      `mapstructure:"workers"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
}

// SessionConfig controls the cart session cookie
type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name"`
	Secret     string `mapstructure:"secret"`
	TTL        int    `mapstructure:"ttl"` // seconds
	Secure     bool   `mapstructure:"secure"`
}

func (s SessionConfig) Lifetime() time.Duration {
	return time.Duration(s.TTL) * time.Second
}

// CheckoutConfig controls the messaging handoff
type CheckoutConfig struct {
	Phone          string `mapstructure:"phone"`
	LinkTemplate   string `mapstructure:"link_template"`
	Greeting       string `mapstructure:"greeting"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
	Locale         string `mapstructure:"locale"`
	Decimals       int    `mapstructure:"decimals"`
}

type RateLimitConfig struct {
	MaxRequests int `mapstructure:"max_requests"`
	Window      int `mapstructure:"window"` // seconds
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if len(c.CMS.Endpoints) == 0 {
		return fmt.Errorf("cms.endpoints must list at least one endpoint")
	}
	if c.CMS.Dataset == "" {
		return fmt.Errorf("cms.dataset must be set")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session.secret must be set")
	}
	if c.CMS.MaxRequestsPerSecond <= 0 {
		return fmt.Errorf("cms.max_requests_per_second must be positive, got %d", c.CMS.MaxRequestsPerSecond)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("cms.endpoints", []string{})
	v.SetDefault("cms.api_version", "2024-01-01")
	v.SetDefault("cms.dataset", "production")
	v.SetDefault("cms.token", "")
	v.SetDefault("cms.timeout", 15)
	v.SetDefault("cms.max_retries", 3)
	v.SetDefault("cms.max_requests_per_second", 10)
	v.SetDefault("cms.circuit_breaker_delay", 300)
	v.SetDefault("cms.cache_ttl", 3600)
	v.SetDefault("cms.workers", 2)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "storefront")
	v.SetDefault("database.user", "storefront_user")
	v.SetDefault("database.password", "storefront_pass")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.key_prefix", "storefront:")
	v.SetDefault("redis.consumer_group", "storefront_revalidators")
	v.SetDefault("redis.min_idle_time", 60)

	v.SetDefault("session.cookie_name", "storefront_session")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", 4*60*60)
	v.SetDefault("session.secure", false)

	v.SetDefault("checkout.phone", "")
	v.SetDefault("checkout.link_template", "https://wa.me/%s?text=%s")
	v.SetDefault("checkout.greeting", "Hi! I'd like to place an order:")
	v.SetDefault("checkout.currency_symbol", "$")
	v.SetDefault("checkout.locale", "en")
	v.SetDefault("checkout.decimals", 2)

	v.SetDefault("rate_limit.max_requests", 120)
	v.SetDefault("rate_limit.window", 60)

	v.SetDefault("webhook.secret", "")
}
