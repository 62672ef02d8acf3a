// Package config provides configuration structures and loading logic for the service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before the file and environment are read.
const (
	DefaultAddress         = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 10 << 20
	DefaultPageSize        = 25
	DefaultMaxPageSize     = 100
	DefaultServiceName     = "cogira-backend"
	DefaultTableName       = "users"
	DefaultPolicyEntry     = "cogira/authz/allow"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverPGX    = "pgx"
	DriverSQLX   = "sqlx"
	DriverSQL    = "sql"
)

// Metrics sinks.
const (
	MetricsNone       = "none"
	MetricsPrometheus = "prometheus"
	MetricsOTel       = "otel"
)

// Config holds the global configuration for the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	CORS      CORSConfig      `yaml:"cors"`
	Limits    LimitsConfig    `yaml:"limits"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Policy    PolicyConfig    `yaml:"policy"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CORSConfig holds the cross-origin policy.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// LimitsConfig holds request and listing bounds.
type LimitsConfig struct {
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
	DefaultPageSize int   `yaml:"default_page_size"`
	MaxPageSize     int   `yaml:"max_page_size"`
}

// StorageConfig selects the keyed store.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// TelemetryConfig holds configuration for metrics and OpenTelemetry.
type TelemetryConfig struct {
	Metrics      string `yaml:"metrics"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
	Environment  string `yaml:"environment"`
	// SampleRatio is the share of traces kept, in (0, 1]. Zero keeps every trace.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// PolicyConfig enables the authorization stage when File is set.
type PolicyConfig struct {
	File        string `yaml:"file"`
	Entrypoint  string `yaml:"entrypoint"`
	FailureMode string `yaml:"failure_mode"`
	Watch       bool   `yaml:"watch"`
}

// Enabled reports whether a policy is configured.
func (c PolicyConfig) Enabled() bool {
	return strings.TrimSpace(c.File) != ""
}

// Default returns the configuration used when neither file nor environment set a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         DefaultAddress,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Correlation-Id"},
			ExposedHeaders: []string{"X-Correlation-Id"},
			MaxAge:         86400,
		},
		Limits: LimitsConfig{
			MaxBodyBytes:    DefaultMaxBodyBytes,
			DefaultPageSize: DefaultPageSize,
			MaxPageSize:     DefaultMaxPageSize,
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
			Table:  DefaultTableName,
		},
		Telemetry: TelemetryConfig{
			Metrics:     MetricsPrometheus,
			ServiceName: DefaultServiceName,
		},
		Policy: PolicyConfig{
			Entrypoint:  DefaultPolicyEntry,
			FailureMode: "fail-closed",
			Watch:       true,
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	setString := map[string]*string{
		"COGIRA_ADDR":                &cfg.Server.Address,
		"COGIRA_LOG_LEVEL":           &cfg.Logging.Level,
		"COGIRA_LOG_FORMAT":          &cfg.Logging.Format,
		"COGIRA_STORAGE_DRIVER":      &cfg.Storage.Driver,
		"COGIRA_STORAGE_DSN":         &cfg.Storage.DSN,
		"COGIRA_STORAGE_TABLE":       &cfg.Storage.Table,
		"COGIRA_METRICS":             &cfg.Telemetry.Metrics,
		"COGIRA_OTLP_ENDPOINT":       &cfg.Telemetry.OTLPEndpoint,
		"COGIRA_SERVICE_NAME":        &cfg.Telemetry.ServiceName,
		"COGIRA_ENVIRONMENT":         &cfg.Telemetry.Environment,
		"COGIRA_POLICY_FILE":         &cfg.Policy.File,
		"COGIRA_POLICY_ENTRYPOINT":   &cfg.Policy.Entrypoint,
		"COGIRA_POLICY_FAILURE_MODE": &cfg.Policy.FailureMode,
	}
	for key, dst := range setString {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}

	if val := os.Getenv("COGIRA_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("COGIRA_CORS_ALLOWED_ORIGINS"); val != "" {
		cfg.CORS.AllowedOrigins = splitList(val)
	}
	if val := os.Getenv("COGIRA_CORS_ALLOW_CREDENTIALS"); val != "" {
		cfg.CORS.AllowCredentials = val == "true"
	}
	if val := os.Getenv("COGIRA_POLICY_WATCH"); val != "" {
		cfg.Policy.Watch = val == "true"
	}

	if val := os.Getenv("COGIRA_MAX_BODY_BYTES"); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("COGIRA_MAX_BODY_BYTES: %w", err)
		}
		cfg.Limits.MaxBodyBytes = n
	}
	if val := os.Getenv("COGIRA_TRACE_SAMPLE_RATIO"); val != "" {
		r, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("COGIRA_TRACE_SAMPLE_RATIO: %w", err)
		}
		cfg.Telemetry.SampleRatio = r
	}
	if val := os.Getenv("COGIRA_SHUTDOWN_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("COGIRA_SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	return nil
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate performs validation of the entire configuration, normalizing values in place.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	if err := c.CORS.Validate(); err != nil {
		return fmt.Errorf("cors configuration: %w", err)
	}

	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits configuration: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage configuration: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry configuration: %w", err)
	}

	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy configuration: %w", err)
	}

	return nil
}

// Validate performs validation of server configuration
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = DefaultAddress
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return nil
}

// Validate performs validation of logging configuration
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}

	format := strings.TrimSpace(strings.ToLower(c.Format))
	switch format {
	case "":
		c.Format = "json"
	case "json", "text":
		c.Format = format
	default:
		return fmt.Errorf("invalid log format %q, supported formats: json, text", c.Format)
	}
	return nil
}

// Validate performs validation of the CORS policy
func (c *CORSConfig) Validate() error {
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins must not be empty")
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age must not be negative")
	}
	if c.AllowCredentials {
		for _, origin := range c.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("allow_credentials cannot be combined with the wildcard origin")
			}
		}
	}
	return nil
}

// Validate performs validation of request and listing bounds
func (c *LimitsConfig) Validate() error {
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default_page_size %d exceeds max_page_size %d", c.DefaultPageSize, c.MaxPageSize)
	}
	return nil
}

// Validate performs validation of storage configuration
func (c *StorageConfig) Validate() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "":
		c.Driver = DriverMemory
	case DriverMemory:
	case DriverPGX, DriverSQLX, DriverSQL:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("driver %q requires a dsn", c.Driver)
		}
	default:
		return fmt.Errorf("unsupported driver %q, supported drivers: memory, pgx, sqlx, sql", c.Driver)
	}
	if strings.TrimSpace(c.Table) == "" {
		c.Table = DefaultTableName
	}
	return nil
}

// Validate performs validation of telemetry configuration
func (c *TelemetryConfig) Validate() error {
	c.Metrics = strings.ToLower(strings.TrimSpace(c.Metrics))
	switch c.Metrics {
	case "":
		c.Metrics = MetricsNone
	case MetricsNone, MetricsPrometheus, MetricsOTel:
	default:
		return fmt.Errorf("unsupported metrics sink %q, supported sinks: none, prometheus, otel", c.Metrics)
	}
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be between 0 and 1, got %v", c.SampleRatio)
	}
	return nil
}

// Validate performs validation of policy configuration
func (c *PolicyConfig) Validate() error {
	if strings.TrimSpace(c.Entrypoint) == "" {
		c.Entrypoint = DefaultPolicyEntry
	}
	mode := strings.ToLower(strings.TrimSpace(c.FailureMode))
	switch mode {
	case "":
		c.FailureMode = "fail-closed"
	case "fail-closed", "fail-open":
		c.FailureMode = mode
	default:
		return fmt.Errorf("unsupported failure_mode %q, supported modes: fail-closed, fail-open", c.FailureMode)
	}
	return nil
}
