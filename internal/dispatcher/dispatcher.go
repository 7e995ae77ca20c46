package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aleister1102/filestatus/internal/checker"
	"github.com/aleister1102/filestatus/internal/common"
	"github.com/aleister1102/filestatus/internal/config"
	"github.com/aleister1102/filestatus/internal/resource"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const recheckBufferSize = 16

// Result aggregates one dispatch round for a resource
type Result struct {
	URI    string
	Reason checker.Reason
	// Changed is true when any checker reported StatusChanged.
	Changed  bool
	Statuses map[string]checker.Status
	TimedOut []string
}

// ChangedBy returns the names of checkers that reported a change
func (r Result) ChangedBy() []string {
	var names []string
	for name, status := range r.Statuses {
		if status == checker.StatusChanged {
			names = append(names, name)
		}
	}
	return names
}

// Dispatcher runs every eligible checker against a resource and aggregates the outcome.
type Dispatcher struct {
	mu       sync.RWMutex
	checkers []checker.Checker

	mutexes       *KeyMutexManager
	flights       singleflight.Group
	recheck       chan string
	checkTimeout  time.Duration
	maxConcurrent int
	logger        zerolog.Logger
}

// Option adjusts a Dispatcher after it is built from config
type Option func(*Dispatcher)

// WithCheckTimeout overrides the per-checker timeout; zero disables it
func WithCheckTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.checkTimeout = timeout }
}

// New creates a dispatcher from the dispatcher_config section
func New(cfg config.DispatcherConfig, logger zerolog.Logger, opts ...Option) *Dispatcher {
	maxConcurrent := cfg.MaxConcurrentChecks
	if maxConcurrent <= 0 {
		maxConcurrent = config.DefaultDispatcherMaxConcurrentChecks
	}
	componentLogger := logger.With().Str("component", "Dispatcher").Logger()
	d := &Dispatcher{
		mutexes:       NewKeyMutexManager(componentLogger),
		recheck:       make(chan string, recheckBufferSize),
		checkTimeout:  cfg.CheckTimeout(),
		maxConcurrent: maxConcurrent,
		logger:        componentLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds an initialized checker. Checker names must be unique.
func (d *Dispatcher) Register(c checker.Checker) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.checkers {
		if existing.Name() == c.Name() {
			return fmt.Errorf("checker '%s' already registered", c.Name())
		}
	}

	if notifier, ok := c.(checker.RecheckNotifier); ok {
		notifier.SetRecheckFunc(d.requestRecheck)
	}
	d.checkers = append(d.checkers, c)
	d.logger.Info().Str("checker_kind", c.Kind()).Str("checker_name", c.Name()).Msg("Checker registered")
	return nil
}

// Checkers returns the registered checkers in registration order
func (d *Dispatcher) Checkers() []checker.Checker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]checker.Checker(nil), d.checkers...)
}

// InitializeAll initializes and registers each checker. A checker that
// fails to initialize is left out; the failures are returned together.
func (d *Dispatcher) InitializeAll(checkers []checker.Checker) error {
	var errs common.ErrorCollector
	for _, c := range checkers {
		if err := c.Initialize(); err != nil {
			level := d.logger.Error()
			if errors.Is(err, common.ErrConfigUnavailable) {
				level = d.logger.Warn()
			}
			level.Err(err).Str("checker_name", c.Name()).Msg("Checker not initialized, skipping")
			errs.AddWithContext(err, c.Name())
			continue
		}
		if err := d.Register(c); err != nil {
			c.Shutdown()
			errs.Add(err)
		}
	}
	return errs.Error()
}

// ShutdownAll shuts every registered checker down, recovering from panics
func (d *Dispatcher) ShutdownAll() error {
	var errs common.ErrorCollector
	for _, c := range d.Checkers() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					errs.Add(fmt.Errorf("checker '%s' panicked during shutdown: %v", c.Name(), r))
				}
			}()
			c.Shutdown()
		}()
	}
	d.logger.Info().Int("checkers", len(d.Checkers())).Msg("Checkers shut down")
	return errs.Error()
}

// RecheckRequests delivers checker names whose enabled flag or executable changed
func (d *Dispatcher) RecheckRequests() <-chan string {
	return d.recheck
}

// PruneLocks drops per-resource locks for resources no longer tracked
func (d *Dispatcher) PruneLocks(activeURIs []string) int {
	checkers := d.Checkers()
	keys := make([]string, 0, len(activeURIs)*len(checkers))
	for _, uri := range activeURIs {
		for _, c := range checkers {
			keys = append(keys, lockKey(c.Name(), uri))
		}
	}
	return d.mutexes.CleanupUnusedMutexes(keys)
}

// Dispatch runs every active checker (and, for background checks, only
// those with background checking enabled) against res. Concurrent identical
// requests share one round.
func (d *Dispatcher) Dispatch(ctx context.Context, res resource.Resource, reason checker.Reason) Result {
	flightKey := reason.String() + "|" + checker.NormalizeKey(res.URI())
	v, _, shared := d.flights.Do(flightKey, func() (interface{}, error) {
		return d.dispatch(ctx, res, reason), nil
	})

	result := v.(Result)
	if shared {
		result = result.clone()
	}
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, res resource.Resource, reason checker.Reason) Result {
	result := Result{
		URI:      res.URI(),
		Reason:   reason,
		Statuses: make(map[string]checker.Status),
	}

	eligible := d.eligible(reason)
	if len(eligible) == 0 {
		return result
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(d.maxConcurrent)

	for _, c := range eligible {
		g.Go(func() error {
			status, timedOut := d.invoke(ctx, c, res, reason)

			mu.Lock()
			defer mu.Unlock()
			result.Statuses[c.Name()] = status
			if timedOut {
				result.TimedOut = append(result.TimedOut, c.Name())
			}
			if status == checker.StatusChanged {
				result.Changed = true
			}
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Debug().
		Str("uri", result.URI).
		Str("reason", reason.String()).
		Bool("changed", result.Changed).
		Int("checkers", len(eligible)).
		Msg("Dispatch round complete")
	return result
}

func (d *Dispatcher) eligible(reason checker.Reason) []checker.Checker {
	var out []checker.Checker
	for _, c := range d.Checkers() {
		if !c.IsActive() {
			continue
		}
		if reason == checker.ReasonBackgroundCheck && !c.IsBackgroundCheckingEnabled() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// invoke runs one checker under its per-resource lock and the configured timeout.
// A timeout or panic counts as unchanged.
func (d *Dispatcher) invoke(ctx context.Context, c checker.Checker, res resource.Resource, reason checker.Reason) (checker.Status, bool) {
	callCtx := ctx
	cancel := func() {}
	if d.checkTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, d.checkTimeout)
	}
	defer cancel()

	done := make(chan checker.Status, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().
					Str("checker_name", c.Name()).
					Str("uri", res.URI()).
					Interface("panic", r).
					Msg("Checker panicked")
				done <- checker.StatusUnchanged
			}
		}()

		lock := d.mutexes.GetMutex(lockKey(c.Name(), res.URI()))
		lock.Lock()
		defer lock.Unlock()

		done <- c.UpdateFileStatus(callCtx, res, reason)
	}()

	select {
	case status := <-done:
		return status, false
	case <-callCtx.Done():
		d.logger.Warn().
			Err(fmt.Errorf("%w: %v", common.ErrTimeout, callCtx.Err())).
			Str("checker_name", c.Name()).
			Str("uri", res.URI()).
			Str("reason", reason.String()).
			Msg("Checker did not finish in time, treating as unchanged")
		return checker.StatusUnchanged, true
	}
}

func (d *Dispatcher) requestRecheck(checkerName string) {
	select {
	case d.recheck <- checkerName:
	default:
		d.logger.Debug().Str("checker_name", checkerName).Msg("Recheck already pending, dropping request")
	}
}

func lockKey(checkerName, uri string) string {
	return checkerName + "|" + checker.NormalizeKey(uri)
}

func (r Result) clone() Result {
	out := r
	out.Statuses = make(map[string]checker.Status, len(r.Statuses))
	for k, v := range r.Statuses {
		out.Statuses[k] = v
	}
	out.TimedOut = append([]string(nil), r.TimedOut...)
	return out
}
