package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/aleister1102/filestatus/internal/config"
)

// AppFlags are the command line options; positional arguments are targets
type AppFlags struct {
	GlobalConfigFile string
	PrefsFile        string
	Mode             string
	TargetsFile      string
	Targets          []string
}

// ParseFlags parses args (without the program name)
func ParseFlags(args []string, output io.Writer) (AppFlags, error) {
	fs := flag.NewFlagSet("filestatus", flag.ContinueOnError)
	fs.SetOutput(output)

	globalConfigFile := fs.String("config", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	globalConfigFileAlias := fs.String("c", "", "Alias for -config")

	prefsFile := fs.String("prefs", "", "Path to the YAML/TOML/JSON preference file holding checker settings (overrides prefs_config.file).")
	prefsFileAlias := fs.String("p", "", "Alias for -prefs")

	modeFlag := fs.String("mode", "", "Mode to run the tool: onetime or watch (overrides config file if set)")
	modeFlagAlias := fs.String("m", "", "Alias for -mode")

	targetsFile := fs.String("targets", "", "Path to a text file listing one target (path or URL) per line.")
	targetsFileAlias := fs.String("t", "", "Alias for -targets")

	if err := fs.Parse(args); err != nil {
		return AppFlags{}, err
	}

	flags := AppFlags{
		GlobalConfigFile: firstNonEmpty(*globalConfigFile, *globalConfigFileAlias),
		PrefsFile:        firstNonEmpty(*prefsFile, *prefsFileAlias),
		Mode:             firstNonEmpty(*modeFlag, *modeFlagAlias),
		TargetsFile:      firstNonEmpty(*targetsFile, *targetsFileAlias),
		Targets:          append([]string{}, fs.Args()...),
	}

	if flags.Mode != "" && flags.Mode != config.ModeOneTime && flags.Mode != config.ModeWatch {
		return AppFlags{}, fmt.Errorf("invalid -mode '%s' (expected %s or %s)", flags.Mode, config.ModeOneTime, config.ModeWatch)
	}
	return flags, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
