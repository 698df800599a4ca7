// Package logging configures go-zero's logx for the stockpond binaries.
package logging

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
)

// Config holds logging configuration.
type Config struct {
	ServiceName string `yaml:"service_name" split_words:"true"`
	// Mode is "console" or "file".
	Mode string `yaml:"mode" split_words:"true"`
	// Path is the log directory used in file mode.
	Path string `yaml:"path" split_words:"true"`
	// Level is one of debug, info, error, severe.
	Level string `yaml:"level" split_words:"true"`
	// Encoding is "plain" or "json".
	Encoding string `yaml:"encoding" split_words:"true"`
	// Stat enables go-zero's periodic resource stats.
	Stat bool `yaml:"stat" split_words:"true"`
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName: "stockpond",
		Mode:        "console",
		Path:        "logs",
		Level:       "info",
		Encoding:    "plain",
	}
}

// Validate rejects unknown modes, levels and encodings.
func (c Config) Validate() error {
	switch c.Mode {
	case "", "console", "file":
	default:
		return fmt.Errorf("log mode %q: want console or file", c.Mode)
	}
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "error", "severe":
	default:
		return fmt.Errorf("log level %q: want debug, info, error or severe", c.Level)
	}
	switch c.Encoding {
	case "", "plain", "json":
	default:
		return fmt.Errorf("log encoding %q: want plain or json", c.Encoding)
	}
	return nil
}

// Setup applies cfg to logx. Empty fields fall back to DefaultConfig.
func Setup(cfg Config) error {
	def := DefaultConfig()
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.Level == "" {
		cfg.Level = def.Level
	}
	if cfg.Encoding == "" {
		cfg.Encoding = def.Encoding
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logx.SetUp(logx.LogConf{
		ServiceName: cfg.ServiceName,
		Mode:        cfg.Mode,
		Path:        cfg.Path,
		Level:       strings.ToLower(cfg.Level),
		Encoding:    cfg.Encoding,
		KeepDays:    7,
	}); err != nil {
		return fmt.Errorf("setup logx: %w", err)
	}
	logx.SetLevel(ParseLevel(cfg.Level))
	if !cfg.Stat {
		logx.DisableStat()
	}
	return nil
}

// ParseLevel maps a level name to its logx constant.
func ParseLevel(level string) uint32 {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logx.DebugLevel
	case "error":
		return logx.ErrorLevel
	case "severe", "fatal":
		return logx.SevereLevel
	default:
		return logx.InfoLevel
	}
}
