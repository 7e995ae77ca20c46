package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/filestatus/internal/checker"
	"github.com/aleister1102/filestatus/internal/config"
	"github.com/aleister1102/filestatus/internal/resource"
	"github.com/aleister1102/filestatus/internal/scheduler"
	"github.com/aleister1102/filestatus/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGlobalConfig(t *testing.T, mode string) *config.GlobalConfig {
	t.Helper()
	cfg := config.NewDefaultGlobalConfig()
	cfg.Mode = mode
	cfg.DispatcherConfig.Checkers = []string{checker.KindDisk}
	cfg.StorageConfig.Enabled = true
	cfg.StorageConfig.SQLiteDBPath = filepath.Join(t.TempDir(), "db", "filestatus.db")
	return cfg
}

func writeTarget(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracked.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	return path
}

func loadDiskCache(t *testing.T, dbPath string) map[string]time.Time {
	t.Helper()
	db, err := store.NewDB(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	entries, err := db.LoadCache(context.Background(), "Disk")
	require.NoError(t, err)
	return entries
}

func TestApp_OnetimePersistsCache(t *testing.T) {
	cfg := testGlobalConfig(t, config.ModeOneTime)
	target := writeTarget(t)

	a, err := newApp(context.Background(), cfg, []string{target}, zerolog.Nop())
	require.NoError(t, err)

	summary, err := a.runOnetime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, checker.ReasonForcedCheck, summary.Reason)
	require.NoError(t, a.close())

	assert.Len(t, loadDiskCache(t, cfg.StorageConfig.SQLiteDBPath), 1)
}

func TestApp_PrefsDisableChecker(t *testing.T) {
	cfg := testGlobalConfig(t, config.ModeOneTime)
	prefsPath := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(prefsPath, []byte("diskStatusEnabled: false\n"), 0644))
	cfg.PrefsConfig.File = prefsPath

	a, err := newApp(context.Background(), cfg, []string{writeTarget(t)}, zerolog.Nop())
	require.NoError(t, err)

	_, err = a.runOnetime(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.close())

	assert.Empty(t, loadDiskCache(t, cfg.StorageConfig.SQLiteDBPath))
}

func TestApp_RestoresCacheAcrossRuns(t *testing.T) {
	cfg := testGlobalConfig(t, config.ModeOneTime)
	target := writeTarget(t)

	first, err := newApp(context.Background(), cfg, []string{target}, zerolog.Nop())
	require.NoError(t, err)
	_, err = first.runOnetime(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.close())

	second, err := newApp(context.Background(), cfg, []string{target}, zerolog.Nop())
	require.NoError(t, err)
	defer second.close()

	disk := second.dispatcher.Checkers()[0]
	assert.Equal(t, 1, disk.Cache().Len())
}

func TestApp_OnetimeReportsEditsBetweenRuns(t *testing.T) {
	cfg := testGlobalConfig(t, config.ModeOneTime)
	target := writeTarget(t)
	uri := resource.FileURI(target)

	runOnce := func() scheduler.RoundSummary {
		a, err := newApp(context.Background(), cfg, []string{target}, zerolog.Nop())
		require.NoError(t, err)
		defer a.close()
		summary, err := a.runOnetime(context.Background())
		require.NoError(t, err)
		return summary
	}

	assert.Empty(t, runOnce().Changed, "first run only records a baseline")
	assert.Empty(t, runOnce().Changed, "untouched target")

	lastChecked, ok := loadDiskCache(t, cfg.StorageConfig.SQLiteDBPath)[checker.NormalizeKey(uri)]
	require.True(t, ok)
	require.NoError(t, os.WriteFile(target, []byte("edited"), 0644))
	editedAt := lastChecked.Add(time.Millisecond)
	require.NoError(t, os.Chtimes(target, editedAt, editedAt))
	assert.Equal(t, []string{uri}, runOnce().Changed)

	assert.Empty(t, runOnce().Changed, "edit is reported once")
}

func TestApp_WatchStopsAfterMaxCycles(t *testing.T) {
	cfg := testGlobalConfig(t, config.ModeWatch)
	cfg.SchedulerConfig.RunInitialCheck = true
	cfg.SchedulerConfig.MaxCycles = 1
	cfg.SchedulerConfig.TickIntervalSeconds = 3600

	a, err := newApp(context.Background(), cfg, []string{writeTarget(t)}, zerolog.Nop())
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.runWatch(ctx))
	assert.NoError(t, ctx.Err(), "watch mode should end on its own after one round")
}

func TestApp_WatchWithGuard(t *testing.T) {
	cfg := testGlobalConfig(t, config.ModeWatch)
	cfg.SchedulerConfig.RunInitialCheck = false
	cfg.SchedulerConfig.TickIntervalSeconds = 3600
	cfg.GuardConfig.Enabled = true
	cfg.GuardConfig.CheckIntervalSeconds = 1
	cfg.GuardConfig.MaxGoroutines = 1
	cfg.GuardConfig.SystemMemThreshold = 0

	a, err := newApp(context.Background(), cfg, []string{writeTarget(t)}, zerolog.Nop())
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.runWatch(ctx))
	assert.NoError(t, ctx.Err(), "guard should end watch mode before the test deadline")
}

func TestApp_WatchWithFileWatcher(t *testing.T) {
	cfg := testGlobalConfig(t, config.ModeWatch)
	cfg.SchedulerConfig.RunInitialCheck = false
	cfg.SchedulerConfig.TickIntervalSeconds = 3600
	target := writeTarget(t)
	cfg.WatcherConfig.Enabled = true
	cfg.WatcherConfig.Paths = []string{filepath.Dir(target)}
	cfg.WatcherConfig.DebounceMillis = 20

	a, err := newApp(context.Background(), cfg, []string{target}, zerolog.Nop())
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.runWatch(ctx) }()

	disk := a.dispatcher.Checkers()[0]
	require.Eventually(t, func() bool {
		_ = os.WriteFile(target, []byte("edited"), 0644)
		return disk.Cache().Len() == 1
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("watch mode did not stop after cancellation")
	}
}

func TestApp_FailsWithoutCheckers(t *testing.T) {
	cfg := testGlobalConfig(t, config.ModeOneTime)
	cfg.DispatcherConfig.Checkers = []string{"svn"}

	_, err := newApp(context.Background(), cfg, nil, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown checker kind")
}

func TestCollectTargets(t *testing.T) {
	dir := t.TempDir()
	listFile := filepath.Join(dir, "targets.txt")
	require.NoError(t, os.WriteFile(listFile, []byte("b.txt\nc.txt\n"), 0644))

	cfg := config.NewDefaultGlobalConfig()
	cfg.Targets = []string{"a.txt", "b.txt"}

	targets, err := collectTargets(cfg, AppFlags{TargetsFile: listFile, Targets: []string{"c.txt", "d.txt"}}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "d.txt"}, targets)

	_, err = collectTargets(cfg, AppFlags{TargetsFile: filepath.Join(dir, "missing.txt")}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRun_OnetimeRequiresTargets(t *testing.T) {
	cfg := testGlobalConfig(t, config.ModeOneTime)
	err := run(context.Background(), cfg, AppFlags{}, zerolog.Nop())
	assert.ErrorContains(t, err, "no targets given")
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := config.NewDefaultGlobalConfig()
	applyFlagOverrides(cfg, AppFlags{Mode: config.ModeWatch, PrefsFile: "prefs.toml"})
	assert.Equal(t, config.ModeWatch, cfg.Mode)
	assert.Equal(t, "prefs.toml", cfg.PrefsConfig.File)

	applyFlagOverrides(cfg, AppFlags{})
	assert.Equal(t, config.ModeWatch, cfg.Mode)
}
