// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve without system zoneinfo

	"github.com/artpar/quotagate/domain/plan"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Quota         QuotaConfig         `yaml:"quota"`
	Plans         []PlanConfig        `yaml:"plans"`
	DefaultPlan   string              `yaml:"default_plan" env:"QUOTAGATE_DEFAULT_PLAN"`
	Admin         AdminConfig         `yaml:"admin"`
	Payload       PayloadConfig       `yaml:"payload"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"QUOTAGATE_SERVER_HOST"`
	Port            int           `yaml:"port" env:"QUOTAGATE_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"QUOTAGATE_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"QUOTAGATE_SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"QUOTAGATE_SERVER_SHUTDOWN_TIMEOUT"`

	// RequireHTTPS rejects plain HTTP requests with 403. TLS may terminate
	// at a proxy that sets X-Forwarded-Proto.
	RequireHTTPS bool `yaml:"require_https" env:"QUOTAGATE_SERVER_REQUIRE_HTTPS"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the account and audit store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"QUOTAGATE_DATABASE_DRIVER"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn" env:"QUOTAGATE_DATABASE_DSN"`
}

// LedgerConfig configures the usage counter store.
type LedgerConfig struct {
	Driver        string        `yaml:"driver" env:"QUOTAGATE_LEDGER_DRIVER"` // "sqlite", "memory" or "redis"
	RedisURL      string        `yaml:"redis_url" env:"QUOTAGATE_LEDGER_REDIS_URL"`
	TTL           time.Duration `yaml:"ttl" env:"QUOTAGATE_LEDGER_TTL"` // redis key expiry
	RetentionDays int           `yaml:"retention_days" env:"QUOTAGATE_LEDGER_RETENTION_DAYS"`
	PruneInterval time.Duration `yaml:"prune_interval" env:"QUOTAGATE_LEDGER_PRUNE_INTERVAL"`
}

// QuotaConfig configures daily quota accounting.
type QuotaConfig struct {
	Timezone         string  `yaml:"timezone" env:"QUOTAGATE_QUOTA_TIMEZONE"`
	WarningThreshold float64 `yaml:"warning_threshold" env:"QUOTAGATE_QUOTA_WARNING_THRESHOLD"`
}

// Location resolves Timezone. Call after validation.
func (q QuotaConfig) Location() *time.Location {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PlanConfig configures a subscription tier.
type PlanConfig struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	RequestsPerDay int64    `yaml:"requests_per_day"` // -1 = unlimited
	Fields         []string `yaml:"fields"`
	PriceMonthly   int64    `yaml:"price_monthly"` // cents
}

// AdminConfig configures the admin API.
type AdminConfig struct {
	// TokenHashes are bcrypt hashes of accepted admin bearer tokens.
	TokenHashes []string `yaml:"token_hashes" env:"QUOTAGATE_ADMIN_TOKEN_HASHES" envSeparator:","`
}

// PayloadConfig configures where analysis payloads come from.
type PayloadConfig struct {
	Mode    string        `yaml:"mode" env:"QUOTAGATE_PAYLOAD_MODE"` // "file" or "upstream"
	Path    string        `yaml:"path" env:"QUOTAGATE_PAYLOAD_PATH"`
	Watch   bool          `yaml:"watch" env:"QUOTAGATE_PAYLOAD_WATCH"`
	URL     string        `yaml:"url" env:"QUOTAGATE_PAYLOAD_URL"`
	Timeout time.Duration `yaml:"timeout" env:"QUOTAGATE_PAYLOAD_TIMEOUT"`
}

// NotificationsConfig configures usage and key-reset emails.
type NotificationsConfig struct {
	Enabled       bool       `yaml:"enabled" env:"QUOTAGATE_NOTIFICATIONS_ENABLED"`
	Provider      string     `yaml:"provider" env:"QUOTAGATE_NOTIFICATIONS_PROVIDER"` // "smtp", "mock" or "none"
	AppName       string     `yaml:"app_name" env:"QUOTAGATE_NOTIFICATIONS_APP_NAME"`
	RatePerMinute int        `yaml:"rate_per_minute" env:"QUOTAGATE_NOTIFICATIONS_RATE_PER_MINUTE"`
	Burst         int        `yaml:"burst" env:"QUOTAGATE_NOTIFICATIONS_BURST"`
	SMTP          SMTPConfig `yaml:"smtp"`
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host        string        `yaml:"host" env:"QUOTAGATE_SMTP_HOST"`
	Port        int           `yaml:"port" env:"QUOTAGATE_SMTP_PORT"`
	Username    string        `yaml:"username" env:"QUOTAGATE_SMTP_USERNAME"`
	Password    string        `yaml:"password" env:"QUOTAGATE_SMTP_PASSWORD"`
	From        string        `yaml:"from" env:"QUOTAGATE_SMTP_FROM"`
	FromName    string        `yaml:"from_name" env:"QUOTAGATE_SMTP_FROM_NAME"`
	UseTLS      bool          `yaml:"use_tls" env:"QUOTAGATE_SMTP_USE_TLS"`
	UseImplicit bool          `yaml:"use_implicit" env:"QUOTAGATE_SMTP_USE_IMPLICIT"`
	SkipVerify  bool          `yaml:"skip_verify" env:"QUOTAGATE_SMTP_SKIP_VERIFY"`
	Timeout     time.Duration `yaml:"timeout" env:"QUOTAGATE_SMTP_TIMEOUT"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"QUOTAGATE_LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" env:"QUOTAGATE_LOG_FORMAT"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"QUOTAGATE_METRICS_ENABLED"`
	Path    string `yaml:"path" env:"QUOTAGATE_METRICS_PATH"`
}

// Load reads configuration from a YAML file. Values from a .env file in the
// working directory and QUOTAGATE_* environment variables override the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Commonly used variables:
//
//	QUOTAGATE_PAYLOAD_PATH         - Analysis dataset (file mode)
//	QUOTAGATE_PAYLOAD_URL          - Analysis service base URL (upstream mode)
//	QUOTAGATE_DATABASE_DSN         - SQLite path (default: quotagate.db)
//	QUOTAGATE_LEDGER_DRIVER        - sqlite, memory or redis
//	QUOTAGATE_LEDGER_REDIS_URL     - redis://host:6379/0
//	QUOTAGATE_ADMIN_TOKEN_HASHES   - Comma separated bcrypt hashes
//	QUOTAGATE_LOG_LEVEL            - debug, info, warn, error (default: info)
//	QUOTAGATE_METRICS_ENABLED      - Enable the metrics endpoint
func LoadFromEnv() (*Config, error) {
	return finish(&Config{})
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set QUOTAGATE_PAYLOAD_PATH or QUOTAGATE_PAYLOAD_URL")
}

// HasEnvConfig returns true if a payload source is configured in the environment.
func HasEnvConfig() bool {
	return os.Getenv("QUOTAGATE_PAYLOAD_PATH") != "" || os.Getenv("QUOTAGATE_PAYLOAD_URL") != ""
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides loads an optional .env file and then applies
// QUOTAGATE_* variables. Variables that are already set win over .env.
func applyEnvOverrides(cfg *Config) error {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env config: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "quotagate.db"
	}

	if cfg.Ledger.Driver == "" {
		cfg.Ledger.Driver = cfg.Database.Driver
	}
	if cfg.Ledger.TTL == 0 {
		cfg.Ledger.TTL = 48 * time.Hour
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 7
	}
	if cfg.Ledger.PruneInterval == 0 {
		cfg.Ledger.PruneInterval = time.Hour
	}

	if cfg.Quota.Timezone == "" {
		cfg.Quota.Timezone = "UTC"
	}
	if cfg.Quota.WarningThreshold == 0 {
		cfg.Quota.WarningThreshold = 0.8
	}

	if cfg.DefaultPlan == "" {
		cfg.DefaultPlan = plan.DefaultID
		if len(cfg.Plans) > 0 {
			cfg.DefaultPlan = cfg.Plans[0].ID
		}
	}

	if cfg.Payload.Mode == "" {
		cfg.Payload.Mode = "file"
		if cfg.Payload.Path == "" && cfg.Payload.URL != "" {
			cfg.Payload.Mode = "upstream"
		}
	}
	if cfg.Payload.Timeout == 0 {
		cfg.Payload.Timeout = 10 * time.Second
	}

	if cfg.Notifications.Provider == "" {
		cfg.Notifications.Provider = "none"
		if cfg.Notifications.Enabled {
			cfg.Notifications.Provider = "smtp"
		}
	}
	if cfg.Notifications.AppName == "" {
		cfg.Notifications.AppName = "Quotagate"
	}
	if cfg.Notifications.RatePerMinute == 0 {
		cfg.Notifications.RatePerMinute = 60
	}
	if cfg.Notifications.Burst == 0 {
		cfg.Notifications.Burst = 5
	}
	if cfg.Notifications.SMTP.Port == 0 {
		cfg.Notifications.SMTP.Port = 587
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	validDatabaseDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDatabaseDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validLedgerDrivers := map[string]bool{"sqlite": true, "memory": true, "redis": true}
	if !validLedgerDrivers[cfg.Ledger.Driver] {
		return fmt.Errorf("ledger.driver must be 'sqlite', 'memory' or 'redis', got %q", cfg.Ledger.Driver)
	}
	if cfg.Ledger.Driver == "sqlite" && cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("ledger.driver 'sqlite' requires database.driver 'sqlite'")
	}
	if cfg.Ledger.Driver == "redis" && cfg.Ledger.RedisURL == "" {
		return fmt.Errorf("ledger.redis_url is required when ledger.driver is 'redis'")
	}
	if cfg.Ledger.RetentionDays < 1 {
		return fmt.Errorf("ledger.retention_days must be at least 1, got %d", cfg.Ledger.RetentionDays)
	}

	if _, err := time.LoadLocation(cfg.Quota.Timezone); err != nil {
		return fmt.Errorf("quota.timezone: %w", err)
	}
	if cfg.Quota.WarningThreshold <= 0 || cfg.Quota.WarningThreshold > 1 {
		return fmt.Errorf("quota.warning_threshold must be in (0, 1], got %v", cfg.Quota.WarningThreshold)
	}

	for i, p := range cfg.Plans {
		if p.ID == "" {
			return fmt.Errorf("plans[%d].id is required", i)
		}
	}
	if _, err := cfg.PlanRegistry(); err != nil {
		return fmt.Errorf("plans: %w", err)
	}

	for i, h := range cfg.Admin.TokenHashes {
		if !strings.HasPrefix(h, "$2") {
			return fmt.Errorf("admin.token_hashes[%d] is not a bcrypt hash", i)
		}
	}

	switch cfg.Payload.Mode {
	case "file":
		if cfg.Payload.Path == "" {
			return fmt.Errorf("payload.path is required when payload.mode is 'file'")
		}
	case "upstream":
		if cfg.Payload.URL == "" {
			return fmt.Errorf("payload.url is required when payload.mode is 'upstream'")
		}
	default:
		return fmt.Errorf("payload.mode must be 'file' or 'upstream', got %q", cfg.Payload.Mode)
	}

	validProviders := map[string]bool{"smtp": true, "mock": true, "none": true}
	if !validProviders[cfg.Notifications.Provider] {
		return fmt.Errorf("notifications.provider must be 'smtp', 'mock' or 'none', got %q", cfg.Notifications.Provider)
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Provider == "smtp" {
		if cfg.Notifications.SMTP.Host == "" {
			return fmt.Errorf("notifications.smtp.host is required when notifications use smtp")
		}
		if cfg.Notifications.SMTP.From == "" {
			return fmt.Errorf("notifications.smtp.from is required when notifications use smtp")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}

// PlanRegistry builds the immutable plan registry. With no configured
// plans the built-in tiers are used.
func (c *Config) PlanRegistry() (*plan.Registry, error) {
	if len(c.Plans) == 0 {
		defaultID := c.DefaultPlan
		if defaultID == "" {
			defaultID = plan.DefaultID
		}
		return plan.NewRegistry(plan.Defaults(), defaultID)
	}

	plans := make([]plan.Plan, 0, len(c.Plans))
	for _, p := range c.Plans {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		plans = append(plans, plan.Plan{
			ID:             p.ID,
			Name:           name,
			Description:    p.Description,
			RequestsPerDay: p.RequestsPerDay,
			Fields:         plan.NewFieldSet(p.Fields...),
			PriceMonthly:   p.PriceMonthly,
		})
	}
	return plan.NewRegistry(plans, c.DefaultPlan)
}
