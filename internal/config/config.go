package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all configuration values.
type Config struct {
	AppPort     string `mapstructure:"APP_PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	// Database. DATABASE_URL wins over the individual parameters.
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBSSLMode      string `mapstructure:"DB_SSL_MODE"`
	DBAutoMigrate  bool   `mapstructure:"DB_AUTO_MIGRATE"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	// SendGrid. An empty API key disables delivery.
	SendGridAPIKey        string  `mapstructure:"SENDGRID_API_KEY"`
	SendGridFromEmail     string  `mapstructure:"SENDGRID_NOTIFICATIONS_FROM_EMAIL"`
	SendGridFromName      string  `mapstructure:"SENDGRID_FROM_NAME"`
	SendGridRatePerSecond float64 `mapstructure:"SENDGRID_RATE_PER_SECOND"`

	// Reminder scanning.
	ReminderSchedule    string        `mapstructure:"REMINDER_SCHEDULE"`
	ReminderConcurrency int           `mapstructure:"REMINDER_CONCURRENCY"`
	ReminderSendTimeout time.Duration `mapstructure:"REMINDER_SEND_TIMEOUT"`
	EventTimezone       string        `mapstructure:"EVENT_TIMEZONE"`

	// Redis scan lock. Empty address keeps the lock in-process.
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	ScanLockTTL   time.Duration `mapstructure:"SCAN_LOCK_TTL"`
}

// Load reads .env, an optional config.yaml and the environment, in that order of precedence
func Load() (Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "eventease")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("SENDGRID_NOTIFICATIONS_FROM_EMAIL", "")
	v.SetDefault("SENDGRID_FROM_NAME", "EventEase")
	v.SetDefault("SENDGRID_RATE_PER_SECOND", 10.0)
	v.SetDefault("REMINDER_SCHEDULE", "0 * * * *")
	v.SetDefault("REMINDER_CONCURRENCY", 4)
	v.SetDefault("REMINDER_SEND_TIMEOUT", 10*time.Second)
	v.SetDefault("EVENT_TIMEZONE", "America/Chicago")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SCAN_LOCK_TTL", 30*time.Minute)
}

// Validate checks values that would otherwise fail late at runtime
func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ReminderConcurrency < 1 {
		return fmt.Errorf("REMINDER_CONCURRENCY must be at least 1, got %d", c.ReminderConcurrency)
	}
	if c.ReminderSendTimeout <= 0 {
		return fmt.Errorf("REMINDER_SEND_TIMEOUT must be positive")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// Location returns the zone event dates and times are interpreted in
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.EventTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_TIMEZONE %q: %w", c.EventTimezone, err)
	}
	return loc, nil
}

// DSN returns the Postgres connection string
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC connect_timeout=10",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// MigrationDSN returns the connection URL golang-migrate expects
func (c Config) MigrationDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// AllowedOrigins splits CORS_ORIGINS on commas
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}
