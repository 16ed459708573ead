package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

const (
	defaultEnvFile = ".env"

	// DefaultConnectionName names the connection built from a database URL.
	DefaultConnectionName = "test"
)

type Config struct {
	// Sources.
	ConfigFile string // optional YAML file with connections
	EnvFile    string // optional dotenv file, loaded before env vars are read

	// Databases.
	Connections []port.ConnectionConfig
	PolicyFile  string // optional YAML file seeding the truncation policy

	// Logging.
	LogLevel  slog.Level
	LogFormat string // "text" (default) or "json"

	// Transport.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics

	// CLI-only fields (not settable via env vars).
	AuditLog string // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	ConfigFile      *string
	EnvFile         *string
	DatabaseURL     *string
	Driver          *string
	CollectorMode   *string
	LogLevel        *string
	LogFormat       *string
	PolicyFile      *string
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	OTelEnabled     bool
	AuditLog        string
}

// fileConfig is the layout of the YAML config file.
type fileConfig struct {
	Connections []port.ConnectionConfig `mapstructure:"connections"`
	PolicyFile  string                  `mapstructure:"policy_file"`
	LogLevel    string                  `mapstructure:"log_level"`
	LogFormat   string                  `mapstructure:"log_format"`
	Transport   string                  `mapstructure:"transport"`
	HTTPAddr    string                  `mapstructure:"http_addr"`
	OTelEnabled bool                    `mapstructure:"otel_enabled"`
}

// Load builds a Config from the dotenv file, the YAML config file and
// environment variables, then applies CLI overrides, then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvFile(cfg, overrides.EnvFile); err != nil {
		return nil, err
	}

	cfg.ConfigFile = os.Getenv("TABLESPY_CONFIG")
	if overrides.ConfigFile != nil {
		cfg.ConfigFile = *overrides.ConfigFile
	}
	if cfg.ConfigFile != "" {
		if err := loadConfigFile(cfg, cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		LogLevel:  slog.LevelInfo,
		LogFormat: "text",
		Transport: "stdio",
		HTTPAddr:  ":8080",
	}
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// A missing default file is ignored; a missing explicit one is an error.
func loadEnvFile(cfg *Config, override *string) error {
	path, explicit := os.Getenv("TABLESPY_ENV_FILE"), true
	if override != nil {
		path = *override
	}
	if path == "" {
		path, explicit = defaultEnvFile, false
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	cfg.EnvFile = path
	return nil
}

// loadConfigFile reads connections and settings from a YAML file.
func loadConfigFile(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}

	cfg.Connections = fc.Connections
	if fc.PolicyFile != "" {
		cfg.PolicyFile = fc.PolicyFile
	}
	if fc.LogLevel != "" {
		level, err := parseLogLevel(fc.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
	if fc.Transport != "" {
		cfg.Transport = fc.Transport
	}
	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	cfg.OTelEnabled = fc.OTelEnabled
	return nil
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("TABLESPY_DATABASE_URL"); v != "" {
		if err := setURLConnection(cfg, v, os.Getenv("TABLESPY_DRIVER")); err != nil {
			return err
		}
	}

	if v := os.Getenv("TABLESPY_COLLECTOR_MODE"); v != "" {
		if err := setCollectorMode(cfg, v); err != nil {
			return fmt.Errorf("invalid TABLESPY_COLLECTOR_MODE value: %w", err)
		}
	}

	if v := os.Getenv("TABLESPY_LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if v := os.Getenv("TABLESPY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := os.Getenv("TABLESPY_POLICY_FILE"); v != "" {
		cfg.PolicyFile = v
	}

	if v := os.Getenv("TABLESPY_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("TABLESPY_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.HTTPBearerToken = os.Getenv("TABLESPY_HTTP_BEARER_TOKEN")

	if v := os.Getenv("TABLESPY_OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TABLESPY_OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		driver := os.Getenv("TABLESPY_DRIVER")
		if o.Driver != nil {
			driver = *o.Driver
		}
		if err := setURLConnection(cfg, *o.DatabaseURL, driver); err != nil {
			return err
		}
	}
	if o.CollectorMode != nil {
		if err := setCollectorMode(cfg, *o.CollectorMode); err != nil {
			return fmt.Errorf("invalid --collector-mode value: %w", err)
		}
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.LogFormat != nil {
		cfg.LogFormat = *o.LogFormat
	}
	if o.PolicyFile != nil {
		cfg.PolicyFile = *o.PolicyFile
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}

	cfg.AuditLog = o.AuditLog
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// setURLConnection adds, or replaces, the connection named
// DefaultConnectionName with one built from a database URL. The driver is
// inferred from the URL when not given.
func setURLConnection(cfg *Config, url, driver string) error {
	d := InferDriver(url)
	if driver != "" {
		var err error
		if d, err = domain.ParseDriver(driver); err != nil {
			return err
		}
	}

	conn := port.ConnectionConfig{Name: DefaultConnectionName, Driver: d, DSN: url}
	for i, c := range cfg.Connections {
		if c.Name == DefaultConnectionName {
			conn.Options = c.Options
			cfg.Connections[i] = conn
			return nil
		}
	}
	cfg.Connections = append(cfg.Connections, conn)
	return nil
}

// InferDriver guesses the driver of a database URL: postgres URLs and
// key=value strings are Postgres, SQLite paths end in .db, .sqlite or
// .sqlite3, anything else is a MySQL DSN.
func InferDriver(url string) domain.Driver {
	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"),
		strings.Contains(lower, "host="):
		return domain.DriverPostgres
	case strings.HasPrefix(lower, "file:"), lower == ":memory:",
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return domain.DriverSQLite
	default:
		return domain.DriverMySQL
	}
}

// setCollectorMode sets the collector mode option of every connection.
func setCollectorMode(cfg *Config, mode string) error {
	m, err := domain.ParseMode(mode)
	if err != nil {
		return err
	}
	for i := range cfg.Connections {
		opts := make(map[string]string, len(cfg.Connections[i].Options)+1)
		for k, v := range cfg.Connections[i].Options {
			opts[k] = v
		}
		opts[domain.OptionCollectorMode] = m.String()
		cfg.Connections[i].Options = opts
	}
	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if len(cfg.Connections) == 0 {
		return fmt.Errorf("no connection configured (set TABLESPY_DATABASE_URL, --database-url or a config file)")
	}

	seen := make(map[string]bool, len(cfg.Connections))
	for i, c := range cfg.Connections {
		if c.Name == "" {
			return fmt.Errorf("connection #%d has no name", i+1)
		}
		if seen[c.Name] {
			return fmt.Errorf("connection %q configured twice", c.Name)
		}
		seen[c.Name] = true

		driver, err := domain.NormalizeDriver(string(c.Driver))
		if err != nil {
			return fmt.Errorf("connection %q: %w", c.Name, err)
		}
		cfg.Connections[i].Driver = driver
		if c.DSN == "" {
			return fmt.Errorf("connection %q has no dsn", c.Name)
		}
		if _, err := domain.ParseMode(c.Option(domain.OptionCollectorMode, "")); err != nil {
			return fmt.Errorf("connection %q: %w", c.Name, err)
		}
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid TABLESPY_LOG_FORMAT value %q: must be \"text\" or \"json\"", cfg.LogFormat)
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TABLESPY_TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("TABLESPY_HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid TABLESPY_LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
