package config

import "time"

// DispatcherConfig controls a single dispatch round
type DispatcherConfig struct {
	CheckTimeoutSeconds int `json:"check_timeout_seconds,omitempty" yaml:"check_timeout_seconds,omitempty" validate:"min=1"`
	MaxConcurrentChecks int `json:"max_concurrent_checks,omitempty" yaml:"max_concurrent_checks,omitempty" validate:"min=1"`
	// Checkers lists the checker kinds to build; empty builds every registered kind.
	Checkers []string `json:"checkers,omitempty" yaml:"checkers,omitempty" validate:"omitempty,dive,oneof=disk git remote"`
}

// NewDefaultDispatcherConfig creates default dispatcher configuration
func NewDefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		CheckTimeoutSeconds: DefaultDispatcherCheckTimeoutSeconds,
		MaxConcurrentChecks: DefaultDispatcherMaxConcurrentChecks,
		Checkers:            []string{},
	}
}

// CheckTimeout returns the per-checker timeout
func (c DispatcherConfig) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutSeconds) * time.Second
}
