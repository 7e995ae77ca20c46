package config

import "time"

// PrefsConfig points at the preference file that checker settings are bound to.
// An empty File means an in-memory store seeded with nothing, so every checker
// keeps its code defaults.
type PrefsConfig struct {
	File              string `json:"file,omitempty" yaml:"file,omitempty"`
	HotReload         bool   `json:"hot_reload" yaml:"hot_reload"`
	ReloadDelayMillis int    `json:"reload_delay_millis,omitempty" yaml:"reload_delay_millis,omitempty" validate:"omitempty,min=0"`
}

// NewDefaultPrefsConfig creates default prefs configuration
func NewDefaultPrefsConfig() PrefsConfig {
	return PrefsConfig{
		File:              "",
		HotReload:         true,
		ReloadDelayMillis: DefaultPrefsReloadDelayMillis,
	}
}

// ReloadDelay returns the debounce delay as a duration
func (c PrefsConfig) ReloadDelay() time.Duration {
	return time.Duration(c.ReloadDelayMillis) * time.Millisecond
}
