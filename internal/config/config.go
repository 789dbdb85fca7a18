// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Documents     DocumentsConfig     `mapstructure:"documents"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains the relational store and the optional Redis used for sweep locks.
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"` // postgres or sqlite
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// SQLiteConfig is used for local runs and tests.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig contains Redis connection settings. Redis is optional.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port for the redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SchedulerConfig contains reminder sweep settings.
type SchedulerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	Time                string        `mapstructure:"time"`         // HH:MM for the pre-deadline sweep
	OverdueTime         string        `mapstructure:"overdue_time"` // HH:MM for the daily overdue sweep
	Timezone            string        `mapstructure:"timezone"`
	SkipWeekends        bool          `mapstructure:"skip_weekends"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	DispatchConcurrency int           `mapstructure:"dispatch_concurrency"`
}

// GetLocation returns the timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// NotificationsConfig selects the outbound channel and its transports.
type NotificationsConfig struct {
	Channel     string        `mapstructure:"channel"` // email, webhook, both, none
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	Email       EmailConfig   `mapstructure:"email"`
	Webhook     WebhookConfig `mapstructure:"webhook"`
}

// EmailConfig contains SMTP settings.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	From     string `mapstructure:"from"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// WebhookConfig contains the flow endpoint that relays messages (Power Automate style).
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// DocumentsConfig controls review PDF generation and where artifacts are stored.
type DocumentsConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Storage  string   `mapstructure:"storage"` // local or s3
	LocalDir string   `mapstructure:"local_dir"`
	S3       S3Config `mapstructure:"s3"`
}

// S3Config contains S3-compatible object storage settings.
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// AuthConfig contains bearer token settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig contains Prometheus metrics exporter settings.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.sqlite.path", "kpi.db")
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.time", "08:00")
	v.SetDefault("scheduler.overdue_time", "09:00")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.lock_ttl", "30m")
	v.SetDefault("scheduler.dispatch_concurrency", 8)

	v.SetDefault("notifications.channel", "email")
	v.SetDefault("notifications.send_timeout", "10s")
	v.SetDefault("notifications.email.from", "no-reply@example.com")
	v.SetDefault("notifications.email.port", 587)
	v.SetDefault("notifications.email.use_tls", true)

	v.SetDefault("documents.enabled", true)
	v.SetDefault("documents.storage", "local")
	v.SetDefault("documents.local_dir", "uploads/reviews")
	v.SetDefault("documents.s3.region", "us-east-1")

	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/kpi-review/")
	}

	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// Database configuration
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.sqlite.path", "SQLITE_PATH")

	// Redis configuration
	_ = v.BindEnv("database.redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.time", "SCHEDULER_TIME")
	_ = v.BindEnv("scheduler.overdue_time", "SCHEDULER_OVERDUE_TIME")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")
	_ = v.BindEnv("scheduler.skip_weekends", "SCHEDULER_SKIP_WEEKENDS")

	// Notification configuration
	_ = v.BindEnv("notifications.channel", "NOTIFICATIONS_CHANNEL")
	_ = v.BindEnv("notifications.email.enabled", "EMAIL_ENABLED")
	_ = v.BindEnv("notifications.email.from", "EMAIL_FROM")
	_ = v.BindEnv("notifications.email.host", "SMTP_HOST")
	_ = v.BindEnv("notifications.email.port", "SMTP_PORT")
	_ = v.BindEnv("notifications.email.user", "SMTP_USER")
	_ = v.BindEnv("notifications.email.password", "SMTP_PASSWORD")
	_ = v.BindEnv("notifications.webhook.enabled", "WEBHOOK_ENABLED")
	_ = v.BindEnv("notifications.webhook.url", "WEBHOOK_URL", "POWER_AUTOMATE_WEBHOOK_URL")

	// Document storage configuration
	_ = v.BindEnv("documents.storage", "DOCUMENTS_STORAGE")
	_ = v.BindEnv("documents.local_dir", "DOCUMENTS_LOCAL_DIR")
	_ = v.BindEnv("documents.s3.bucket", "S3_BUCKET")
	_ = v.BindEnv("documents.s3.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("documents.s3.access_key", "S3_ACCESS_KEY")
	_ = v.BindEnv("documents.s3.secret_key", "S3_SECRET_KEY")

	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if c.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Database.Redis.Enabled && c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required when redis is enabled")
	}

	if c.Scheduler.Enabled {
		if _, _, err := ParseClock(c.Scheduler.Time); err != nil {
			return fmt.Errorf("scheduler.time: %w", err)
		}
		if _, _, err := ParseClock(c.Scheduler.OverdueTime); err != nil {
			return fmt.Errorf("scheduler.overdue_time: %w", err)
		}
		if _, err := c.Scheduler.GetLocation(); err != nil {
			return fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
		}
	}

	switch c.Notifications.Channel {
	case "email", "webhook", "both", "none":
	default:
		return fmt.Errorf("unsupported notifications.channel %q", c.Notifications.Channel)
	}
	if c.Notifications.Email.Enabled && c.Notifications.Email.Host == "" {
		return fmt.Errorf("notifications.email.host is required when email is enabled")
	}
	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return fmt.Errorf("notifications.webhook.url is required when webhook is enabled")
	}

	if c.Documents.Enabled && c.Documents.Storage == "s3" && c.Documents.S3.Bucket == "" {
		return fmt.Errorf("documents.s3.bucket is required for s3 storage")
	}

	if c.Server.Environment == "production" && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret must be set in production")
	}

	return nil
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(value string) (int, int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format %q, expected HH:MM", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}

	return hour, minute, nil
}
