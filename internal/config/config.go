// Package config loads sprintboard settings from defaults, an optional YAML
// file and SPRINTBOARD_* environment variables, in rising priority.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sprintboard/internal/models"
	"sprintboard/internal/storage"
)

// EnvPrefix prefixes every environment override, e.g. SPRINTBOARD_DB_DSN.
const EnvPrefix = "SPRINTBOARD"

// Config is the resolved runtime configuration.
type Config struct {
	Addr            string
	DB              DB
	Log             Log
	Telemetry       Telemetry
	DefaultColumns  []string
	StaticDir       string
	ShutdownTimeout time.Duration
}

// DB selects and reaches the database.
type DB struct {
	Driver         string
	DSN            string
	ConnectTimeout time.Duration
}

// Log controls the slog handler.
type Log struct {
	Level  slog.Level
	Format string
}

// Telemetry toggles otel providers and their stdout exporters.
type Telemetry struct {
	Enabled bool
	Stdout  bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("db.driver", storage.DriverSQLite)
	v.SetDefault("db.dsn", "data/sprintboard.db")
	v.SetDefault("db.connect_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", true)
	v.SetDefault("board.default_columns", models.DefaultColumns)
	v.SetDefault("static_dir", "")
	v.SetDefault("shutdown_timeout", "5s")
}

// Load resolves the configuration. An empty path skips the config file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Addr: v.GetString("addr"),
		DB: DB{
			Driver:         v.GetString("db.driver"),
			DSN:            v.GetString("db.dsn"),
			ConnectTimeout: v.GetDuration("db.connect_timeout"),
		},
		Log: Log{
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Telemetry: Telemetry{
			Enabled: v.GetBool("telemetry.enabled"),
			Stdout:  v.GetBool("telemetry.stdout"),
		},
		DefaultColumns:  columnList(v.Get("board.default_columns")),
		StaticDir:       v.GetString("static_dir"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}
	if err := cfg.Log.Level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return Config{}, fmt.Errorf("log.level: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DB.Driver {
	case storage.DriverSQLite, storage.DriverPostgres:
	default:
		return fmt.Errorf("db.driver must be %q or %q, got %q", storage.DriverSQLite, storage.DriverPostgres, c.DB.Driver)
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("db.dsn must not be empty")
	}
	// Zero would let OpenWithRetry retry forever.
	if c.DB.ConnectTimeout <= 0 {
		return fmt.Errorf("db.connect_timeout must be positive")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if len(c.DefaultColumns) == 0 {
		return fmt.Errorf("board.default_columns must list at least one column")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}

// columnList accepts a YAML list or a comma separated string. Column names
// may contain spaces, so whitespace is not a separator.
func columnList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewLogger builds the process logger for the configured format and level.
func NewLogger(w io.Writer, cfg Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
