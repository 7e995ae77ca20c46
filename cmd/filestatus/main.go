package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aleister1102/filestatus/internal/config"
	"github.com/aleister1102/filestatus/internal/logger"
	"github.com/aleister1102/filestatus/internal/resource"
	"github.com/rs/zerolog"
)

func main() {
	flags, err := ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatalf("[FATAL] Main: %v", err)
	}

	gCfg, err := config.LoadGlobalConfig(flags.GlobalConfigFile)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not load global config using path '%s': %v", flags.GlobalConfigFile, err)
	}
	applyFlagOverrides(gCfg, flags)

	appLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not initialize logger: %v", err)
	}
	defer appLogger.Close()
	zLogger := appLogger.Zerolog()

	if err := config.ValidateConfig(gCfg); err != nil {
		zLogger.Fatal().Err(err).Msg("Configuration validation failed")
	}
	zLogger.Info().Str("mode", gCfg.Mode).Msg("Configuration validated successfully.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			zLogger.Info().Str("signal", sig.String()).Msg("Received interrupt signal, initiating graceful shutdown...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, gCfg, flags, zLogger); err != nil {
		zLogger.Error().Err(err).Msg("filestatus failed")
		_ = appLogger.Close()
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *config.GlobalConfig, flags AppFlags) {
	if flags.Mode != "" {
		cfg.Mode = flags.Mode
	}
	if flags.PrefsFile != "" {
		cfg.PrefsConfig.File = flags.PrefsFile
	}
}

// collectTargets merges config, targets file and positional targets, dropping duplicates.
func collectTargets(cfg *config.GlobalConfig, flags AppFlags, logger zerolog.Logger) ([]string, error) {
	var all []string
	all = append(all, cfg.Targets...)
	if flags.TargetsFile != "" {
		fromFile, err := resource.ReadTargetsFromFile(flags.TargetsFile, logger)
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}
	all = append(all, flags.Targets...)

	seen := make(map[string]struct{}, len(all))
	targets := make([]string, 0, len(all))
	for _, t := range all {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}
	return targets, nil
}

func run(ctx context.Context, cfg *config.GlobalConfig, flags AppFlags, logger zerolog.Logger) (err error) {
	targets, err := collectTargets(cfg, flags, logger)
	if err != nil {
		return err
	}
	if len(targets) == 0 && cfg.Mode == config.ModeOneTime {
		return fmt.Errorf("no targets given: pass paths or URLs as arguments, use -targets, or set targets in the config file")
	}

	a, err := newApp(ctx, cfg, targets, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if cfg.Mode == config.ModeWatch {
		logger.Info().Int("targets", len(targets)).Msg("Running in watch mode...")
		return a.runWatch(ctx)
	}

	logger.Info().Int("targets", len(targets)).Msg("Running in onetime mode...")
	summary, err := a.runOnetime(ctx)
	if err != nil {
		return err
	}
	for _, uri := range summary.Changed {
		fmt.Println(uri)
	}
	logger.Info().Int("checked", summary.Checked).Int("changed", len(summary.Changed)).Msg("Onetime check finished.")
	return nil
}
