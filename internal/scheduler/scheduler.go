package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/aleister1102/filestatus/internal/checker"
	"github.com/aleister1102/filestatus/internal/common"
	"github.com/aleister1102/filestatus/internal/config"
	"github.com/aleister1102/filestatus/internal/dispatcher"
	"github.com/aleister1102/filestatus/internal/resource"
	"github.com/aleister1102/filestatus/internal/store"
	"github.com/rs/zerolog"
)

const stopTimeout = 10 * time.Second

// ErrNotRunning is returned by CheckNow when the scheduler is not started
var ErrNotRunning = errors.New("scheduler is not running")

// Dispatcher is the part of dispatcher.Dispatcher the scheduler drives
type Dispatcher interface {
	Dispatch(ctx context.Context, res resource.Resource, reason checker.Reason) dispatcher.Result
	Checkers() []checker.Checker
	RecheckRequests() <-chan string
	PruneLocks(activeURIs []string) int
}

// Persistence stores checker caches and round history
type Persistence interface {
	SaveCache(ctx context.Context, checkerName string, entries map[string]time.Time) error
	LoadCache(ctx context.Context, checkerName string) (map[string]time.Time, error)
	RecordRoundStart(ctx context.Context, reason string, resources int, startTime time.Time) (int64, error)
	UpdateRoundCompletion(ctx context.Context, id int64, endTime time.Time, status string, changed int) error
}

// RoundSummary describes one completed check round
type RoundSummary struct {
	ID         string
	Reason     checker.Reason
	Checked    int
	Changed    []string
	Evicted    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithPersistence saves caches after every round and at shutdown
func WithPersistence(p Persistence) Option {
	return func(s *Scheduler) { s.persistence = p }
}

// WithResultHandler is called with every dispatch result, from worker goroutines
func WithResultHandler(fn func(dispatcher.Result)) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// WithRoundHandler is called after every round
func WithRoundHandler(fn func(RoundSummary)) Option {
	return func(s *Scheduler) { s.onRound = fn }
}

// WithClock replaces time.Now for eviction and round timestamps
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

type checkJob struct {
	ctx     context.Context
	res     resource.Resource
	reason  checker.Reason
	cycleWG *sync.WaitGroup
}

// Scheduler runs periodic background rounds over the tracked resources
// through a worker pool, and immediate rounds on demand.
type Scheduler struct {
	logger      zerolog.Logger
	cfg         config.SchedulerConfig
	dispatcher  Dispatcher
	persistence Persistence
	onResult    func(dispatcher.Result)
	onRound     func(RoundSummary)
	clock       func() time.Time
	tracker     *CycleTracker

	resourcesMu sync.RWMutex
	resources   map[string]resource.Resource

	ctx        context.Context
	cancelFunc context.CancelFunc
	workerChan chan checkJob
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once

	// roundMu serializes rounds and guards running and workerChan.
	roundMu sync.Mutex
	running bool
	mu      sync.Mutex
	started bool
}

// New creates a scheduler over d
func New(cfg config.SchedulerConfig, d Dispatcher, logger zerolog.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger:     logger.With().Str("component", "Scheduler").Logger(),
		cfg:        cfg,
		dispatcher: d,
		clock:      time.Now,
		tracker:    NewCycleTracker(cfg.MaxCycles),
		resources:  make(map[string]resource.Resource),
		ctx:        ctx,
		cancelFunc: cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddResource tracks res. A resource with the same normalized URI is replaced.
// When a checker cache already holds res, for example after RestoreCaches,
// change detection resumes from the latest recorded check.
func (s *Scheduler) AddResource(res resource.Resource) {
	if r, ok := res.(resource.Resumable); ok {
		if last, found := s.lastChecked(res.URI()); found {
			r.ResumeFrom(last)
			s.logger.Debug().Str("uri", res.URI()).Time("last_checked", last).Msg("Resuming change detection from restored cache")
		}
	}

	s.resourcesMu.Lock()
	defer s.resourcesMu.Unlock()
	s.resources[checker.NormalizeKey(res.URI())] = res
}

// RemoveResource stops tracking uri
func (s *Scheduler) RemoveResource(uri string) bool {
	s.resourcesMu.Lock()
	defer s.resourcesMu.Unlock()
	key := checker.NormalizeKey(uri)
	if _, ok := s.resources[key]; !ok {
		return false
	}
	delete(s.resources, key)
	return true
}

// Resource returns the tracked resource for uri
func (s *Scheduler) Resource(uri string) (resource.Resource, bool) {
	s.resourcesMu.RLock()
	defer s.resourcesMu.RUnlock()
	res, ok := s.resources[checker.NormalizeKey(uri)]
	return res, ok
}

// Resources returns the tracked resources sorted by URI
func (s *Scheduler) Resources() []resource.Resource {
	s.resourcesMu.RLock()
	defer s.resourcesMu.RUnlock()
	out := make([]resource.Resource, 0, len(s.resources))
	for _, res := range s.resources {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI() < out[j].URI() })
	return out
}

// RestoreCaches loads persisted caches into the dispatcher's checkers
func (s *Scheduler) RestoreCaches(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	var errs common.ErrorCollector
	for _, c := range s.dispatcher.Checkers() {
		entries, err := s.persistence.LoadCache(ctx, c.Name())
		if err != nil {
			errs.AddWithContext(err, c.Name())
			continue
		}
		c.Cache().Restore(entries)
		s.logger.Debug().Str("checker_name", c.Name()).Int("entries", len(entries)).Msg("Cache restored")
	}
	return errs.Error()
}

func (s *Scheduler) lastChecked(uri string) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, c := range s.dispatcher.Checkers() {
		if t, ok := c.Cache().LastChecked(uri); ok && (!found || t.After(latest)) {
			latest, found = t, true
		}
	}
	return latest, found
}

// RoundsRun returns how many rounds have started, including forced ones
func (s *Scheduler) RoundsRun() int {
	return s.tracker.CyclesRun()
}

// Done is closed once the main loop has exited
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Start launches the worker pool and the main loop. It does not block.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.logger.Warn().Msg("Scheduler already started.")
		return nil
	}
	s.started = true
	s.mu.Unlock()

	numWorkers := s.cfg.MaxConcurrentChecks
	if numWorkers <= 0 {
		numWorkers = 1
		s.logger.Warn().Int("configured_workers", s.cfg.MaxConcurrentChecks).Msg("MaxConcurrentChecks is not configured or invalid, defaulting to 1 worker.")
	}

	s.roundMu.Lock()
	s.workerChan = make(chan checkJob, numWorkers)
	s.running = true
	s.roundMu.Unlock()

	for i := 0; i < numWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	interval := s.cfg.TickInterval()
	if interval <= 0 {
		s.logger.Warn().Int("configured_interval", s.cfg.TickIntervalSeconds).Msg("TickIntervalSeconds is not configured or invalid, defaulting to 1 minute.")
		interval = time.Minute
	}

	s.logger.Info().Int("num_workers", numWorkers).Dur("tick_interval", interval).Msg("Scheduler started")
	go s.loop(interval)
	return nil
}

func (s *Scheduler) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()

		s.roundMu.Lock()
		s.running = false
		close(s.workerChan)
		s.roundMu.Unlock()
		s.wg.Wait()

		s.persistCaches(context.Background())
		close(s.done)
		s.logger.Info().Msg("Scheduler main loop and workers stopped.")
	}()

	if s.cfg.RunInitialCheck {
		s.logger.Info().Int("count", s.resourceCount()).Msg("Performing initial check for tracked resources.")
		s.round(s.ctx, checker.ReasonBackgroundCheck)
		if !s.tracker.ShouldContinue() {
			s.logger.Info().Int("max_cycles", s.cfg.MaxCycles).Msg("Maximum rounds reached, stopping scheduler.")
			return
		}
	}

	recheck := s.dispatcher.RecheckRequests()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler context cancelled, main loop stopping.")
			return
		case name := <-recheck:
			s.logger.Info().Str("checker_name", name).Msg("Checker configuration changed, rechecking tracked resources.")
			s.round(s.ctx, checker.ReasonForcedCheck)
		case <-ticker.C:
			s.round(s.ctx, checker.ReasonBackgroundCheck)
		}
		if !s.tracker.ShouldContinue() {
			s.logger.Info().Int("max_cycles", s.cfg.MaxCycles).Msg("Maximum rounds reached, stopping scheduler.")
			return
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	s.logger.Debug().Int("worker_id", id).Msg("Check worker started")
	for job := range s.workerChan {
		if job.ctx.Err() != nil {
			job.cycleWG.Done()
			continue
		}
		result := s.dispatcher.Dispatch(job.ctx, job.res, job.reason)
		if result.Changed {
			s.tracker.AddChangedURI(result.URI)
		}
		if s.onResult != nil {
			s.onResult(result)
		}
		job.cycleWG.Done()
	}
	s.logger.Debug().Int("worker_id", id).Msg("Check worker stopped as channel closed.")
}

// CheckNow runs an immediate round over every tracked resource and waits for it.
func (s *Scheduler) CheckNow(ctx context.Context, reason checker.Reason) (RoundSummary, error) {
	summary, ok := s.round(ctx, reason)
	if !ok {
		return RoundSummary{}, ErrNotRunning
	}
	return summary, nil
}

// round runs one check round. It returns false when the scheduler is not running.
func (s *Scheduler) round(ctx context.Context, reason checker.Reason) (RoundSummary, bool) {
	s.roundMu.Lock()
	defer s.roundMu.Unlock()
	if !s.running {
		return RoundSummary{}, false
	}

	targets := s.Resources()
	summary := RoundSummary{
		Reason:    reason,
		StartedAt: s.clock(),
	}
	summary.ID = s.tracker.StartCycle(summary.StartedAt)
	roundID := s.recordRoundStart(ctx, summary)

	var cycleWG sync.WaitGroup
	for _, res := range targets {
		cycleWG.Add(1)
		job := checkJob{ctx: ctx, res: res, reason: reason, cycleWG: &cycleWG}
		select {
		case s.workerChan <- job:
			summary.Checked++
		case <-ctx.Done():
			cycleWG.Done()
		case <-s.ctx.Done():
			cycleWG.Done()
		}
	}
	cycleWG.Wait()

	summary.Changed = s.tracker.EndCycle()
	summary.Evicted = s.evict()
	if pruned := s.dispatcher.PruneLocks(uris(targets)); pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Msg("Pruned locks of untracked resources")
	}
	s.persistCaches(ctx)
	summary.FinishedAt = s.clock()
	s.recordRoundCompletion(ctx, roundID, summary)

	s.logger.Info().
		Str("round_id", summary.ID).
		Str("reason", reason.String()).
		Int("checked", summary.Checked).
		Int("changed", len(summary.Changed)).
		Int("evicted", summary.Evicted).
		Msg("Check round completed")
	if s.onRound != nil {
		s.onRound(summary)
	}
	return summary, true
}

// evict drops cache entries older than max(evict_after, background interval) per checker.
func (s *Scheduler) evict() int {
	evictAfter := s.cfg.EvictAfter()
	if evictAfter <= 0 {
		return 0
	}
	now := s.clock()
	total := 0
	for _, c := range s.dispatcher.Checkers() {
		age := evictAfter
		if interval := c.Settings().BackgroundDuration; interval > age {
			age = interval
		}
		total += c.Cache().EvictOlderThan(now.Add(-age))
	}
	return total
}

func (s *Scheduler) persistCaches(ctx context.Context) {
	if s.persistence == nil {
		return
	}
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	var errs common.ErrorCollector
	for _, c := range s.dispatcher.Checkers() {
		errs.AddWithContext(s.persistence.SaveCache(ctx, c.Name(), c.Cache().Snapshot()), c.Name())
	}
	if errs.HasErrors() {
		s.logger.Error().Err(errs.Error()).Msg("Failed to persist checker caches")
	}
}

func (s *Scheduler) recordRoundStart(ctx context.Context, summary RoundSummary) int64 {
	if s.persistence == nil {
		return 0
	}
	id, err := s.persistence.RecordRoundStart(ctx, summary.Reason.String(), s.resourceCount(), summary.StartedAt)
	if err != nil {
		s.logger.Warn().Err(err).Str("round_id", summary.ID).Msg("Failed to record round start")
		return 0
	}
	return id
}

func (s *Scheduler) recordRoundCompletion(ctx context.Context, id int64, summary RoundSummary) {
	if s.persistence == nil || id == 0 {
		return
	}
	status := store.RoundStatusCompleted
	if ctx.Err() != nil || s.ctx.Err() != nil {
		status = store.RoundStatusCancelled
		ctx = context.Background()
	}
	if err := s.persistence.UpdateRoundCompletion(ctx, id, summary.FinishedAt, status, len(summary.Changed)); err != nil {
		s.logger.Warn().Err(err).Str("round_id", summary.ID).Msg("Failed to record round completion")
	}
}

// Stop cancels the main loop and waits for in-flight checks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.logger.Info().Msg("Scheduler was not started.")
		return
	}

	s.stopOnce.Do(func() {
		s.logger.Info().Msg("Attempting to stop Scheduler...")
		s.cancelFunc()

		select {
		case <-s.done:
			s.logger.Info().Msg("Scheduler stopped successfully.")
		case <-time.After(stopTimeout):
			s.logger.Warn().Msg("Scheduler did not stop gracefully within the timeout.")
		}
	})
}

func (s *Scheduler) resourceCount() int {
	s.resourcesMu.RLock()
	defer s.resourcesMu.RUnlock()
	return len(s.resources)
}

func uris(resources []resource.Resource) []string {
	out := make([]string, len(resources))
	for i, res := range resources {
		out[i] = res.URI()
	}
	return out
}
