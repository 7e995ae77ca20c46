package config

const (
	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogMaxSizeMB  = 50
	DefaultLogMaxBackups = 5
	DefaultLogMaxAgeDays = 14

	// Prefs Defaults
	DefaultPrefsReloadDelayMillis = 500

	// Dispatcher Defaults
	DefaultDispatcherCheckTimeoutSeconds = 30
	DefaultDispatcherMaxConcurrentChecks = 4

	// Scheduler Defaults
	DefaultSchedulerTickIntervalSeconds = 60
	DefaultSchedulerMaxConcurrentChecks = 5
	DefaultSchedulerEvictAfterMinutes   = 24 * 60

	// Storage Defaults
	DefaultStorageSQLiteDBPath = "database/filestatus.db"

	// Watcher Defaults
	DefaultWatcherDebounceMillis = 200

	// Guard Defaults
	DefaultGuardMaxMemoryMB          = 1024
	DefaultGuardMaxGoroutines        = 10000
	DefaultGuardSystemMemThreshold   = 0.9
	DefaultGuardCheckIntervalSeconds = 30

	// Remote Defaults
	DefaultRemoteHTTPTimeoutSeconds = 20
	DefaultRemoteUserAgent          = "filestatus/1.0"

	// Modes
	ModeOneTime = "onetime"
	ModeWatch   = "watch"
)
