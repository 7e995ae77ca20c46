package logger

import (
	"strings"

	"github.com/aleister1102/filestatus/internal/common"
	"github.com/aleister1102/filestatus/internal/config"
	"github.com/rs/zerolog"
)

// Format selects how log lines are rendered.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	// FormatText is the console layout without colour codes.
	FormatText Format = "text"
)

// Rotation mirrors the lumberjack settings for the log file.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Options is the resolved form of config.LogConfig.
type Options struct {
	Level    zerolog.Level
	Format   Format
	Console  bool
	File     string
	Rotation Rotation
}

func defaultOptions() Options {
	return Options{
		Level:   zerolog.InfoLevel,
		Format:  FormatConsole,
		Console: true,
		Rotation: Rotation{
			MaxSizeMB:  config.DefaultLogMaxSizeMB,
			MaxBackups: config.DefaultLogMaxBackups,
			MaxAgeDays: config.DefaultLogMaxAgeDays,
		},
	}
}

// OptionsFromConfig resolves the log section. Unlike the validator it is
// strict: unknown levels and formats are errors rather than silently
// replaced with defaults.
func OptionsFromConfig(cfg config.LogConfig) (Options, error) {
	opts := defaultOptions()

	if cfg.Level != "" {
		level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return Options{}, common.WrapErrorf(err, "invalid log level %q", cfg.Level)
		}
		opts.Level = level
	}

	format, err := parseFormat(cfg.Format)
	if err != nil {
		return Options{}, err
	}
	opts.Format = format
	opts.Console = !cfg.Quiet
	opts.File = cfg.File

	if cfg.MaxSizeMB > 0 {
		opts.Rotation.MaxSizeMB = cfg.MaxSizeMB
	}
	opts.Rotation.MaxBackups = cfg.MaxBackups
	opts.Rotation.MaxAgeDays = cfg.MaxAgeDays
	opts.Rotation.Compress = cfg.Compress
	return opts, nil
}

func parseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatConsole, nil
	case FormatConsole, FormatJSON, FormatText:
		return f, nil
	}
	return "", common.NewValidationError("format", s, "must be one of console, json, text")
}
