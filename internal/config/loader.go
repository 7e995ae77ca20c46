package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/aleister1102/filestatus/internal/common"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable consulted for the config file.
const ConfigPathEnv = "FILESTATUS_CONFIG_PATH"

// maxConfigFileSize caps how much of a config file is read.
const maxConfigFileSize = 10 * 1024 * 1024

// configFileNames are tried in order inside every search directory.
var configFileNames = []string{"config.yaml", "config.yml", "config.toml", "config.json"}

// GetConfigPath resolves the config file. The first existing file wins:
// the flag value, then $FILESTATUS_CONFIG_PATH, then configFileNames in the
// working directory, the executable's directory and the user config
// directory (for example ~/.config/filestatus). Returns "" when none exist.
func GetConfigPath(flagPath string) string {
	for _, explicit := range []string{flagPath, os.Getenv(ConfigPathEnv)} {
		if explicit != "" && fileExists(explicit) {
			return explicit
		}
	}

	for _, dir := range searchDirs() {
		for _, name := range configFileNames {
			if path := filepath.Join(dir, name); fileExists(path) {
				return path
			}
		}
	}
	return ""
}

func searchDirs() []string {
	var dirs []string
	add := func(dir string, err error) {
		if err != nil || dir == "" {
			return
		}
		for _, d := range dirs {
			if d == dir {
				return
			}
		}
		dirs = append(dirs, dir)
	}

	add(os.Getwd())
	if exe, err := os.Executable(); err == nil {
		add(filepath.Dir(exe), nil)
	}
	if userDir, err := os.UserConfigDir(); err == nil {
		add(filepath.Join(userDir, "filestatus"), nil)
	}
	return dirs
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// readConfigFile reads path, refusing files over maxConfigFileSize.
func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigFileSize {
		return nil, common.NewValidationError("config_file", path, "config file too large")
	}
	return os.ReadFile(path)
}

// decodeConfig overlays data onto cfg, choosing the format by extension.
// Keys missing from the file leave cfg's defaults in place.
func decodeConfig(data []byte, path string, cfg *GlobalConfig) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = decodeTOML(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return common.WrapErrorf(err, "failed to decode '%s'", path)
	}
	return nil
}

// decodeTOML reuses the json tags: TOML is read into a generic map and
// then mapped onto the struct.
func decodeTOML(data []byte, cfg *GlobalConfig) error {
	var raw map[string]interface{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
