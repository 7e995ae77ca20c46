package main

import (
	"context"
	"fmt"

	"github.com/aleister1102/filestatus/internal/checker"
	"github.com/aleister1102/filestatus/internal/common"
	"github.com/aleister1102/filestatus/internal/config"
	"github.com/aleister1102/filestatus/internal/dispatcher"
	"github.com/aleister1102/filestatus/internal/guard"
	"github.com/aleister1102/filestatus/internal/httpclient"
	"github.com/aleister1102/filestatus/internal/prefs"
	"github.com/aleister1102/filestatus/internal/resource"
	"github.com/aleister1102/filestatus/internal/scheduler"
	"github.com/aleister1102/filestatus/internal/store"
	"github.com/aleister1102/filestatus/internal/watcher"
	"github.com/rs/zerolog"
)

type prefsStore interface {
	prefs.Store
	Close() error
}

// app holds the wired components of one run
type app struct {
	cfg    *config.GlobalConfig
	logger zerolog.Logger

	prefs      prefsStore
	fileStore  *prefs.FileStore
	db         *store.DB
	dispatcher *dispatcher.Dispatcher
	scheduler  *scheduler.Scheduler
}

// newApp builds every component from cfg. targets are tracked by the scheduler.
func newApp(ctx context.Context, cfg *config.GlobalConfig, targets []string, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.PrefsConfig.File != "" {
		fileStore, err := prefs.NewFileStore(cfg.PrefsConfig.File, prefs.FileStoreOptions{
			Logger:      logger,
			HotReload:   cfg.PrefsConfig.HotReload && cfg.Mode == config.ModeWatch,
			ReloadDelay: cfg.PrefsConfig.ReloadDelay(),
		})
		if err != nil {
			return nil, common.WrapError(err, "failed to load preferences")
		}
		a.fileStore = fileStore
		a.prefs = fileStore
	} else {
		logger.Info().Msg("No preference file configured, checkers use their defaults.")
		a.prefs = prefs.NewMemoryStore(logger)
	}

	client, err := httpclient.NewBuilder(logger).WithRemoteConfig(cfg.RemoteConfig).Build()
	if err != nil {
		a.close()
		return nil, common.WrapError(err, "failed to build HTTP client")
	}

	checkers, err := checker.DefaultRegistry().Build(checker.Deps{Store: a.prefs, Logger: logger}, cfg.DispatcherConfig.Checkers...)
	if err != nil {
		a.close()
		return nil, err
	}

	a.dispatcher = dispatcher.New(cfg.DispatcherConfig, logger)
	if err := a.dispatcher.InitializeAll(checkers); err != nil {
		if len(a.dispatcher.Checkers()) == 0 {
			a.close()
			return nil, common.WrapError(err, "no checker could be initialized")
		}
		logger.Warn().Err(err).Msg("Some checkers failed to initialize and are skipped")
	}

	opts := []scheduler.Option{scheduler.WithResultHandler(a.logResult)}
	if cfg.StorageConfig.Enabled {
		db, err := store.NewDB(cfg.StorageConfig.SQLiteDBPath, logger)
		if err != nil {
			a.close()
			return nil, common.WrapError(err, "failed to open cache database")
		}
		a.db = db
		opts = append(opts, scheduler.WithPersistence(db))
	}

	schedCfg := cfg.SchedulerConfig
	if cfg.Mode == config.ModeOneTime {
		schedCfg.RunInitialCheck = false
		schedCfg.MaxCycles = 0
	}
	a.scheduler = scheduler.New(schedCfg, a.dispatcher, logger, opts...)

	if err := a.scheduler.RestoreCaches(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore some checker caches")
	}

	for _, target := range targets {
		res, err := resource.New(target, client, logger)
		if err != nil {
			logger.Warn().Err(err).Str("target", target).Msg("Skipping invalid target")
			continue
		}
		a.scheduler.AddResource(res)
	}
	logger.Info().Int("resources", len(a.scheduler.Resources())).Int("checkers", len(a.dispatcher.Checkers())).Msg("Application wired")
	return a, nil
}

// runOnetime force-checks every target once
func (a *app) runOnetime(ctx context.Context) (scheduler.RoundSummary, error) {
	if err := a.scheduler.Start(); err != nil {
		return scheduler.RoundSummary{}, err
	}
	defer a.scheduler.Stop()

	summary, err := a.scheduler.CheckNow(ctx, checker.ReasonForcedCheck)
	if err != nil {
		return scheduler.RoundSummary{}, err
	}
	return summary, nil
}

// runWatch runs background rounds, preference hot reload and the file
// watcher until ctx is done or the scheduler reaches its round limit.
func (a *app) runWatch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.GuardConfig.Enabled {
		g := guard.New(a.cfg.GuardConfig, a.logger, nil)
		g.SetShutdownCallback(func(reason string) {
			a.logger.Warn().Str("reason", reason).Msg("Stopping watch mode due to resource limits")
			cancel()
		})
		g.Start(ctx)
		defer g.Stop()
	}

	if a.fileStore != nil {
		a.fileStore.Start(ctx)
	}

	if err := a.scheduler.Start(); err != nil {
		return err
	}
	defer a.scheduler.Stop()

	if a.cfg.WatcherConfig.Enabled {
		w, err := watcher.New(a.cfg.WatcherConfig, a.logger)
		if err != nil {
			return common.WrapError(err, "failed to create file watcher")
		}
		if err := w.Start(); err != nil {
			_ = w.Stop()
			return common.WrapError(err, "failed to start file watcher")
		}
		defer func() {
			if err := w.Stop(); err != nil {
				a.logger.Warn().Err(err).Msg("Failed to stop file watcher")
			}
		}()

		go watcher.Forward(ctx, w.Events(), a.scheduler, a.dispatcher, a.logResult, a.logger)
	}

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Watch mode interrupted.")
	case <-a.scheduler.Done():
		a.logger.Info().Int("rounds", a.scheduler.RoundsRun()).Msg("Scheduler finished its configured rounds.")
	}
	return nil
}

func (a *app) logResult(result dispatcher.Result) {
	if result.Changed {
		a.logger.Info().
			Str("uri", result.URI).
			Str("reason", result.Reason.String()).
			Strs("changed_by", result.ChangedBy()).
			Msg("Resource changed")
		return
	}
	if len(result.TimedOut) > 0 {
		a.logger.Warn().Str("uri", result.URI).Strs("timed_out", result.TimedOut).Msg("Resource unchanged, some checkers timed out")
		return
	}
	a.logger.Debug().Str("uri", result.URI).Str("reason", result.Reason.String()).Msg("Resource unchanged")
}

// close shuts checkers down and releases stores. Safe on a partially built app.
func (a *app) close() error {
	var errs common.ErrorCollector
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.dispatcher != nil {
		errs.AddWithContext(a.dispatcher.ShutdownAll(), "shutdown checkers")
	}
	if a.db != nil {
		errs.AddWithContext(a.db.Close(), "close cache database")
	}
	if a.prefs != nil {
		errs.AddWithContext(a.prefs.Close(), "close preferences")
	}
	if errs.HasErrors() {
		return fmt.Errorf("shutdown: %w", errs.Error())
	}
	return nil
}
