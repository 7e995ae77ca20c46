package config

import "time"

// GuardConfig bounds the resources a long-running watch process may use
type GuardConfig struct {
	Enabled              bool    `json:"enabled" yaml:"enabled"`
	MaxMemoryMB          int64   `json:"max_memory_mb,omitempty" yaml:"max_memory_mb,omitempty" validate:"min=0"`
	MaxGoroutines        int     `json:"max_goroutines,omitempty" yaml:"max_goroutines,omitempty" validate:"min=0"`
	SystemMemThreshold   float64 `json:"system_mem_threshold,omitempty" yaml:"system_mem_threshold,omitempty" validate:"min=0,max=1"`
	CheckIntervalSeconds int     `json:"check_interval_seconds,omitempty" yaml:"check_interval_seconds,omitempty" validate:"min=1"`
	AutoShutdown         bool    `json:"auto_shutdown" yaml:"auto_shutdown"`
}

// NewDefaultGuardConfig creates default guard configuration
func NewDefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Enabled:              false,
		MaxMemoryMB:          DefaultGuardMaxMemoryMB,
		MaxGoroutines:        DefaultGuardMaxGoroutines,
		SystemMemThreshold:   DefaultGuardSystemMemThreshold,
		CheckIntervalSeconds: DefaultGuardCheckIntervalSeconds,
		AutoShutdown:         true,
	}
}

// CheckInterval returns the sampling interval as a duration
func (c GuardConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}
