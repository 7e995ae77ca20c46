package config

import "time"

// SchedulerConfig defines configuration for the background check scheduler
type SchedulerConfig struct {
	TickIntervalSeconds int  `json:"tick_interval_seconds,omitempty" yaml:"tick_interval_seconds,omitempty" validate:"min=1"`
	MaxConcurrentChecks int  `json:"max_concurrent_checks,omitempty" yaml:"max_concurrent_checks,omitempty" validate:"min=1"`
	EvictAfterMinutes   int  `json:"evict_after_minutes,omitempty" yaml:"evict_after_minutes,omitempty" validate:"min=0"`
	MaxCycles           int  `json:"max_cycles,omitempty" yaml:"max_cycles,omitempty" validate:"min=0"`
	RunInitialCheck     bool `json:"run_initial_check" yaml:"run_initial_check"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickIntervalSeconds: DefaultSchedulerTickIntervalSeconds,
		MaxConcurrentChecks: DefaultSchedulerMaxConcurrentChecks,
		EvictAfterMinutes:   DefaultSchedulerEvictAfterMinutes,
		MaxCycles:           0, // 0 means run indefinitely
		RunInitialCheck:     true,
	}
}

// TickInterval returns the background tick as a duration
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// EvictAfter returns the cache eviction age; zero disables eviction
func (c SchedulerConfig) EvictAfter() time.Duration {
	return time.Duration(c.EvictAfterMinutes) * time.Minute
}
