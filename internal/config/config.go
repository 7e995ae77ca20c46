package config

import "github.com/aleister1102/filestatus/internal/common"

// GlobalConfig contains all configuration sections for the host process
type GlobalConfig struct {
	DispatcherConfig DispatcherConfig `json:"dispatcher_config,omitempty" yaml:"dispatcher_config,omitempty"`
	GuardConfig      GuardConfig      `json:"guard_config,omitempty" yaml:"guard_config,omitempty"`
	LogConfig        LogConfig        `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	Mode             string           `json:"mode,omitempty" yaml:"mode,omitempty" validate:"required,mode"`
	PrefsConfig      PrefsConfig      `json:"prefs_config,omitempty" yaml:"prefs_config,omitempty"`
	RemoteConfig     RemoteConfig     `json:"remote_config,omitempty" yaml:"remote_config,omitempty"`
	SchedulerConfig  SchedulerConfig  `json:"scheduler_config,omitempty" yaml:"scheduler_config,omitempty"`
	StorageConfig    StorageConfig    `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	Targets          []string         `json:"targets,omitempty" yaml:"targets,omitempty" validate:"omitempty,dive,required"`
	WatcherConfig    WatcherConfig    `json:"watcher_config,omitempty" yaml:"watcher_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		DispatcherConfig: NewDefaultDispatcherConfig(),
		GuardConfig:      NewDefaultGuardConfig(),
		LogConfig:        NewDefaultLogConfig(),
		Mode:             ModeOneTime,
		PrefsConfig:      NewDefaultPrefsConfig(),
		RemoteConfig:     NewDefaultRemoteConfig(),
		SchedulerConfig:  NewDefaultSchedulerConfig(),
		StorageConfig:    NewDefaultStorageConfig(),
		Targets:          []string{},
		WatcherConfig:    NewDefaultWatcherConfig(),
	}
}

// LoadGlobalConfig starts from the defaults and overlays the file found by
// GetConfigPath. JSON, YAML and TOML files are accepted.
func LoadGlobalConfig(providedPath string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	if providedPath != "" && !fileExists(providedPath) {
		return nil, common.NewValidationError("config_file", providedPath, "config file does not exist")
	}

	path := GetConfigPath(providedPath)
	if path == "" {
		return cfg, nil
	}

	data, err := readConfigFile(path)
	if err != nil {
		return nil, common.WrapError(err, "failed to load config file content")
	}
	if err := decodeConfig(data, path, cfg); err != nil {
		return nil, common.WrapError(err, "failed to parse config content")
	}
	return cfg, nil
}
