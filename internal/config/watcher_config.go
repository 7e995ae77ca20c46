package config

import "time"

// WatcherConfig defines the file system watcher that emits file-changed checks
type WatcherConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	Paths            []string `json:"paths,omitempty" yaml:"paths,omitempty" validate:"omitempty,dive,required"`
	Recursive        bool     `json:"recursive" yaml:"recursive"`
	RespectGitignore bool     `json:"respect_gitignore" yaml:"respect_gitignore"`
	DebounceMillis   int      `json:"debounce_millis,omitempty" yaml:"debounce_millis,omitempty" validate:"min=0"`
}

// NewDefaultWatcherConfig creates default watcher configuration
func NewDefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Enabled:          false,
		Paths:            []string{},
		Recursive:        false,
		RespectGitignore: true,
		DebounceMillis:   DefaultWatcherDebounceMillis,
	}
}

// Debounce returns how long a path must stay quiet before it is reported
func (c WatcherConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}
