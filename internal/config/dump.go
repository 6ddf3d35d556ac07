package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Dump.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

const redacted = "********"

// settings mirrors Config with durations as strings, the way they are
// written in a config file.
type settings struct {
	StagingDir     string         `toml:"staging_dir" yaml:"staging_dir"`
	Database       string         `toml:"database" yaml:"database"`
	Boards         []string       `toml:"boards" yaml:"boards"`
	Workers        int            `toml:"workers" yaml:"workers"`
	BusyTimeout    string         `toml:"busy_timeout" yaml:"busy_timeout"`
	CreateTables   bool           `toml:"create_tables" yaml:"create_tables"`
	SchemaTemplate string         `toml:"schema_template" yaml:"schema_template"`
	Source         sourceSettings `toml:"source" yaml:"source"`
	Log            logSettings    `toml:"log" yaml:"log"`
	Watch          watchSettings  `toml:"watch" yaml:"watch"`
}

type sourceSettings struct {
	Driver   string   `toml:"driver" yaml:"driver"`
	Host     string   `toml:"host" yaml:"host"`
	Port     int      `toml:"port" yaml:"port"`
	User     string   `toml:"user" yaml:"user"`
	Password string   `toml:"password" yaml:"password"`
	Name     string   `toml:"name" yaml:"name"`
	Path     string   `toml:"path" yaml:"path"`
	PageSize int      `toml:"page_size" yaml:"page_size"`
	Skip     []string `toml:"skip" yaml:"skip"`
}

type logSettings struct {
	Level      string `toml:"level" yaml:"level"`
	Format     string `toml:"format" yaml:"format"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
}

type watchSettings struct {
	Debounce string `toml:"debounce" yaml:"debounce"`
}

func (c *Config) settings() settings {
	password := ""
	if c.Source.Password != "" {
		password = redacted
	}
	return settings{
		StagingDir:     c.StagingDir,
		Database:       c.Database,
		Boards:         c.Boards,
		Workers:        c.Workers,
		BusyTimeout:    c.BusyTimeout.String(),
		CreateTables:   c.CreateTables,
		SchemaTemplate: c.SchemaTemplate,
		Source: sourceSettings{
			Driver:   c.Source.Driver,
			Host:     c.Source.Host,
			Port:     c.Source.Port,
			User:     c.Source.User,
			Password: password,
			Name:     c.Source.Name,
			Path:     c.Source.Path,
			PageSize: c.Source.PageSize,
			Skip:     c.Source.Skip,
		},
		Log: logSettings{
			Level:      c.Log.Level,
			Format:     c.Log.Format,
			File:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
		},
		Watch: watchSettings{Debounce: c.Watch.Debounce.String()},
	}
}

// Dump writes the configuration as a config file in format. The source
// password is redacted.
func (c *Config) Dump(w io.Writer, format string) error {
	s := c.settings()
	switch format {
	case FormatTOML, "":
		return toml.NewEncoder(w).Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want %s or %s)", format, FormatTOML, FormatYAML)
	}
}
