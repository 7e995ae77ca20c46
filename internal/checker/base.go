package checker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleister1102/filestatus/internal/common"
	"github.com/aleister1102/filestatus/internal/prefs"
	"github.com/aleister1102/filestatus/internal/resource"
	"github.com/rs/zerolog"
)

// ErrShutDown is returned when initializing a checker that was already shut down
var ErrShutDown = errors.New("checker is shut down")

// Options describes a checker variant to Base
type Options struct {
	Kind     string
	Name     string
	Keys     PrefKeys
	Defaults Settings
	// BackgroundOptIn lets IsBackgroundCheckingEnabled report the bound setting.
	BackgroundOptIn bool
	// OnExecutableChanged runs after the executable setting changes.
	OnExecutableChanged func(old, new string)
}

// Base implements preference binding, change routing, lifecycle and the
// staleness gate shared by every checker. Variants embed it and override
// UpdateFileStatus.
type Base struct {
	kind            string
	name            string
	keys            PrefKeys
	defaults        Settings
	backgroundOptIn bool
	onExecutable    func(old, new string)

	store  prefs.Store
	logger zerolog.Logger
	clock  func() time.Time
	cache  *Cache

	settings atomic.Pointer[Settings]
	recheck  atomic.Pointer[RecheckFunc]

	mu          sync.Mutex
	bound       []string
	initialized bool
	shutDown    bool
}

// NewBase creates an uninitialized Base
func NewBase(opts Options, deps Deps) *Base {
	b := &Base{
		kind:            opts.Kind,
		name:            opts.Name,
		keys:            opts.Keys,
		defaults:        opts.Defaults,
		backgroundOptIn: opts.BackgroundOptIn,
		onExecutable:    opts.OnExecutableChanged,
		store:           deps.Store,
		clock:           deps.now(),
		cache:           NewCache(),
		logger: deps.Logger.With().
			Str("component", "Checker").
			Str("checker_kind", opts.Kind).
			Str("checker_name", opts.Name).
			Logger(),
	}
	initial := opts.Defaults
	b.settings.Store(&initial)
	return b
}

// Kind returns the checker type, e.g. "disk"
func (b *Base) Kind() string { return b.kind }

// Name returns the display name, e.g. "Disk"
func (b *Base) Name() string { return b.name }

// Cache returns the checker's last-checked cache
func (b *Base) Cache() *Cache { return b.cache }

// Logger returns the checker's sub-logger
func (b *Base) Logger() zerolog.Logger { return b.logger }

// Now returns the current time from the injected clock
func (b *Base) Now() time.Time { return b.clock() }

// Settings returns the current settings snapshot
func (b *Base) Settings() Settings { return *b.settings.Load() }

// IsActive reports the current enabled setting
func (b *Base) IsActive() bool { return b.settings.Load().Enabled }

// IsBackgroundCheckingEnabled is false unless the variant opted in
func (b *Base) IsBackgroundCheckingEnabled() bool {
	return b.backgroundOptIn && b.settings.Load().BackgroundEnabled
}

// UpdateFileStatus has no opinion on any resource
func (b *Base) UpdateFileStatus(ctx context.Context, res resource.Resource, reason Reason) Status {
	return StatusInapplicable
}

// State returns the lifecycle state
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.shutDown:
		return StateShutDown
	case !b.initialized:
		return StateUninitialized
	case b.IsActive():
		return StateActive
	default:
		return StateDisabled
	}
}

// SetRecheckFunc installs the callback used to request a re-check
func (b *Base) SetRecheckFunc(fn RecheckFunc) {
	if fn == nil {
		b.recheck.Store(nil)
		return
	}
	b.recheck.Store(&fn)
}

// SetExecutable assigns the executable and runs the variant hook when it changed
func (b *Base) SetExecutable(path string) {
	old, _ := b.update(func(s *Settings) { s.Executable = path })
	if old.Executable != path && b.onExecutable != nil {
		b.onExecutable(old.Executable, path)
	}
}

// Initialize subscribes to and loads every field that has a key.
// Missing keys keep their defaults. An unavailable store undoes the
// bindings made so far and returns common.ErrConfigUnavailable.
func (b *Base) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shutDown {
		return ErrShutDown
	}
	if b.initialized {
		return nil
	}

	for f := Field(0); f < fieldCount; f++ {
		key := b.keys.Key(f)
		if key == "" {
			continue
		}
		if err := b.bind(f, key); err != nil {
			b.unbindAllLocked()
			return common.WrapErrorf(err, "initialize checker '%s'", b.name)
		}
	}

	b.initialized = true
	b.logger.Debug().
		Strs("bound_keys", b.bound).
		Interface("settings", b.Settings()).
		Msg("Checker initialized")
	return nil
}

// Shutdown removes every subscription. Errors are logged and swallowed.
func (b *Base) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shutDown {
		return
	}
	b.unbindAllLocked()
	b.shutDown = true
	b.logger.Debug().Msg("Checker shut down")
}

// ObservePref re-reads key into every field bound to it.
func (b *Base) ObservePref(key string) error {
	b.mu.Lock()
	inactive := b.shutDown
	b.mu.Unlock()
	if inactive {
		return nil
	}

	var errs common.ErrorCollector
	for f := Field(0); f < fieldCount; f++ {
		if key == "" || b.keys.Key(f) != key {
			continue
		}
		if err := b.refresh(f, key); err != nil {
			errs.Add(err)
		}
	}
	return errs.Error()
}

// bind subscribes before loading so a change racing with the load is not lost
func (b *Base) bind(f Field, key string) error {
	if err := b.store.AddObserver(key, b); err != nil {
		return err
	}
	b.bound = append(b.bound, key)

	v, err := readField(b.store, f, key)
	switch {
	case err == nil:
		b.apply(f, v)
	case errors.Is(err, common.ErrConfigUnavailable):
		return err
	case errors.Is(err, prefs.ErrKeyNotFound):
		b.logger.Debug().Str("key", key).Str("field", f.String()).Msg("Preference not set, keeping default")
	default:
		b.logger.Warn().Err(err).Str("key", key).Str("field", f.String()).Msg("Invalid preference value, keeping default")
	}
	return nil
}

func (b *Base) unbindAllLocked() {
	seen := make(map[string]bool, len(b.bound))
	for _, key := range b.bound {
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := b.store.RemoveObserver(key, b); err != nil {
			b.logger.Debug().Err(err).Str("key", key).Msg("Unable to remove preference observer")
		}
	}
	b.bound = nil
}

func (b *Base) refresh(f Field, key string) error {
	v, err := readField(b.store, f, key)
	if errors.Is(err, prefs.ErrKeyNotFound) {
		v, err = defaultField(b.defaults, f), nil
	}
	if err != nil {
		return common.WrapErrorf(err, "checker '%s' field '%s'", b.name, f)
	}

	if !b.apply(f, v) {
		return nil
	}

	b.logger.Info().Str("key", key).Str("field", f.String()).Interface("settings", b.Settings()).Msg("Checker setting changed")
	if f == FieldEnabled || f == FieldExecutable {
		b.requestRecheck()
	}
	return nil
}

// apply stores v into field f and reports whether the value changed
func (b *Base) apply(f Field, v fieldValue) bool {
	if f == FieldExecutable {
		before := b.Settings().Executable
		b.SetExecutable(v.s)
		return before != v.s
	}
	_, changed := b.update(func(s *Settings) { applyField(s, f, v) })
	return changed
}

// update swaps in a modified copy of the settings
func (b *Base) update(mutate func(*Settings)) (Settings, bool) {
	for {
		cur := b.settings.Load()
		next := *cur
		mutate(&next)
		if b.settings.CompareAndSwap(cur, &next) {
			return *cur, *cur != next
		}
	}
}

func (b *Base) requestRecheck() {
	if fn := b.recheck.Load(); fn != nil {
		(*fn)(b.name)
	}
}

// GatedProbe runs probe when the check is forced or the resource is stale
// with respect to interval. When the probe succeeds the check time is
// recorded; a failing probe is logged and reported as unchanged.
func (b *Base) GatedProbe(ctx context.Context, res resource.Resource, reason Reason, interval time.Duration, probe func(context.Context) (Status, error)) Status {
	now := b.Now()
	if reason != ReasonForcedCheck && !b.cache.IsStale(res.URI(), now, interval) {
		return StatusUnchanged
	}

	status, err := probe(ctx)
	if err == nil && ctx.Err() != nil {
		err = common.WrapError(common.ErrTimeout, ctx.Err().Error())
	}
	// A probe that ran past its deadline leaves the entry stale so the next check retries.
	if err != nil {
		b.logger.Warn().
			Err(common.NewProbeError(b.name, res.URI(), err)).
			Str("reason", reason.String()).
			Msg("Status probe failed")
		return StatusUnchanged
	}

	b.cache.RecordChecked(res.URI(), now)
	return status
}
