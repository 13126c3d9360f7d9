package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Billing    BillingConfig    `mapstructure:"billing" validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
	// AllowedOrigins lists the browser origins allowed to call the API.
	// An empty list allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

type StripeConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	PublishableKey string `mapstructure:"publishable_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" default:"1.0"`
}

type BillingConfig struct {
	DefaultCurrency string `mapstructure:"default_currency" validate:"required,len=3"`
	// LinkRetryAttempts bounds retries of the transaction that links a new
	// gateway intent to its payment before the intent is cancelled
	LinkRetryAttempts uint64        `mapstructure:"link_retry_attempts"`
	LinkRetryInterval time.Duration `mapstructure:"link_retry_interval"`
}

type CacheConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	WebhookEventTTL   time.Duration `mapstructure:"webhook_event_ttl"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional and only used for local development
	_ = godotenv.Load()

	v := viper.New()

	// Modify config paths to ensure config.yaml is found
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tuitionbill")

	// Set up environment variables support
	v.SetEnvPrefix("TUITIONBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("billing.default_currency", "usd")
	v.SetDefault("billing.link_retry_attempts", 2)
	v.SetDefault("billing.link_retry_interval", 100*time.Millisecond)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.webhook_event_ttl", 24*time.Hour)
	v.SetDefault("cache.default_expiration", 30*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			DefaultCurrency:   "usd",
			LinkRetryAttempts: 2,
			LinkRetryInterval: time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:           true,
			WebhookEventTTL:   time.Hour,
			DefaultExpiration: 30 * time.Minute,
			CleanupInterval:   10 * time.Minute,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetURL returns the postgres connection url used by the migrator
func (c PostgresConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}
