package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OTel     OTelConfig     `mapstructure:"otel"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Booking  BookingConfig  `mapstructure:"booking"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Version     string `mapstructure:"version"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// KafkaConfig holds Kafka producer settings
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// JWTConfig holds token verification settings
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	CollectorAddr string `mapstructure:"collector_addr"`
}

// StripeConfig holds payment gateway settings
type StripeConfig struct {
	SecretKey       string  `mapstructure:"secret_key"`
	WebhookSecret   string  `mapstructure:"webhook_secret"`
	PlatformFeeRate float64 `mapstructure:"platform_fee_rate"`
}

// BookingConfig holds reservation engine policy settings
type BookingConfig struct {
	// Timezone is the fixed business time zone used to resolve the weekday
	// and time-of-day of booking timestamps.
	Timezone string `mapstructure:"timezone"`
	// InitialHoldWindow is how long a new hold stays reservable.
	InitialHoldWindow time.Duration `mapstructure:"initial_hold_window"`
	// RecurringHoldWindow is the shared hold window for recurring children.
	RecurringHoldWindow time.Duration `mapstructure:"recurring_hold_window"`
	// PaymentHoldWindow extends a hold once payment is in progress.
	PaymentHoldWindow time.Duration `mapstructure:"payment_hold_window"`
	// RetryGraceWindow extends an existing hold on a same-player re-submit.
	RetryGraceWindow time.Duration `mapstructure:"retry_grace_window"`
	// Currency is the ISO currency code used for quotes and checkouts.
	Currency string `mapstructure:"currency"`
	// SweepInterval is the expiry reaper tick period.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// CompletionSweepInterval is the low-frequency sweep that completes
	// recurring bookings whose end date has passed.
	CompletionSweepInterval time.Duration `mapstructure:"completion_sweep_interval"`
	// SweepBatchSize caps how many rows one sweep iteration processes.
	SweepBatchSize int `mapstructure:"sweep_batch_size"`
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// Load reads configuration from config.yaml and the environment.
// Environment variables use the FIELDBOOK_ prefix with _ separators,
// e.g. FIELDBOOK_DATABASE_PASSWORD.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("FIELDBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults plus env cover local runs.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fieldbook")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "0.1.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "fieldbook")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 100)

	v.SetDefault("kafka.topic", "booking-events")
	v.SetDefault("kafka.client_id", "fieldbook")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.collector_addr", "localhost:4317")

	v.SetDefault("stripe.platform_fee_rate", 0.05)

	v.SetDefault("booking.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("booking.initial_hold_window", 15*time.Minute)
	v.SetDefault("booking.recurring_hold_window", 30*time.Minute)
	v.SetDefault("booking.payment_hold_window", 30*time.Minute)
	v.SetDefault("booking.retry_grace_window", 5*time.Minute)
	v.SetDefault("booking.currency", "vnd")
	v.SetDefault("booking.sweep_interval", time.Minute)
	v.SetDefault("booking.completion_sweep_interval", 24*time.Hour)
	v.SetDefault("booking.sweep_batch_size", 200)
}
