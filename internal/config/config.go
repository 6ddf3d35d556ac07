// Package config loads boardsync settings.
//
// Settings are resolved in this order, later sources winning:
//
//  1. built-in defaults
//  2. boardsync.toml or boardsync.yaml in the working directory or
//     $HOME/.config/boardsync (or the file named by --config)
//  3. BOARDSYNC_* environment variables, with "." in a key replaced by "_"
//     (BOARDSYNC_SOURCE_PASSWORD sets source.password)
//  4. command-line flags
//
// The result is validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "BOARDSYNC"

// Config is the complete boardsync configuration.
type Config struct {
	// StagingDir holds the exported CSV files.
	StagingDir string `mapstructure:"staging_dir" validate:"required"`

	// Database is the destination SQLite file.
	Database string `mapstructure:"database" validate:"required"`

	// Boards restricts import, export and watch to these boards.
	Boards []string `mapstructure:"boards" validate:"dive,min=1,max=3"`

	// Workers is the number of boards imported concurrently.
	Workers int `mapstructure:"workers" validate:"min=1,max=64"`

	BusyTimeout time.Duration `mapstructure:"busy_timeout" validate:"gte=0"`

	// CreateTables creates missing board tables before importing.
	CreateTables bool `mapstructure:"create_tables"`

	// SchemaTemplate overrides the built-in DDL template.
	SchemaTemplate string `mapstructure:"schema_template"`

	Source SourceConfig `mapstructure:"source"`
	Log    LogConfig    `mapstructure:"log"`
	Watch  WatchConfig  `mapstructure:"watch"`
}

// SourceConfig describes the database exported from.
type SourceConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=mysql sqlite3"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`

	// Path is the database file of a sqlite3 source.
	Path string `mapstructure:"path"`

	PageSize int `mapstructure:"page_size" validate:"min=1"`

	// Skip lists table name prefixes never exported.
	Skip []string `mapstructure:"skip"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `mapstructure:"format" validate:"oneof=auto json console"`

	// File, when set, receives logs instead of stderr and is rotated.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=1"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"gt=0"`
}

// defaults lists every key with its default value. Every key must appear
// here for environment overrides to reach Unmarshal.
var defaults = map[string]any{
	"staging_dir":     "exports",
	"database":        "archive.db",
	"boards":          []string{},
	"workers":         1,
	"busy_timeout":    "5s",
	"create_tables":   false,
	"schema_template": "",

	"source.driver":    "mysql",
	"source.host":      "127.0.0.1",
	"source.port":      3306,
	"source.user":      "",
	"source.password":  "",
	"source.name":      "",
	"source.path":      "",
	"source.page_size": 50_000,
	"source.skip":      []string{},

	"log.level":        "info",
	"log.format":       "auto",
	"log.file":         "",
	"log.max_size_mb":  100,
	"log.max_backups":  3,
	"log.max_age_days": 28,

	"watch.debounce": "2s",
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"staging":       "staging_dir",
	"db":            "database",
	"boards":        "boards",
	"workers":       "workers",
	"create-tables": "create_tables",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"log-file":      "log.file",
	"debounce":      "watch.debounce",
	"page-size":     "source.page_size",
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. Empty means search the default
	// locations; a missing default file is not an error.
	File string

	// NoFile skips config files entirely.
	NoFile bool

	// Flags are bound over file and environment values. Flags not listed
	// in flagKeys are ignored.
	Flags *pflag.FlagSet
}

// Load resolves and validates the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if !opts.NoFile {
		if err := readFile(v, opts.File); err != nil {
			return nil, err
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("boardsync")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "boardsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// Default returns the built-in configuration with environment overrides
// applied.
func Default() (*Config, error) {
	return Load(Options{NoFile: true})
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint and reports all violations.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = describe(fe)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
