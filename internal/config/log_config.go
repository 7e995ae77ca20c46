package config

// LogConfig controls where log lines go and how log files rotate.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,loglevel"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,logformat"`
	// File enables a rotating log file next to stderr output. Empty disables it.
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty" validate:"omitempty,min=1"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty" validate:"omitempty,min=0"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty" validate:"omitempty,min=0"`
	Compress   bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
	Quiet      bool   `json:"quiet,omitempty" yaml:"quiet,omitempty"`
}

func NewDefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      DefaultLogLevel,
		Format:     DefaultLogFormat,
		MaxSizeMB:  DefaultLogMaxSizeMB,
		MaxBackups: DefaultLogMaxBackups,
		MaxAgeDays: DefaultLogMaxAgeDays,
	}
}
