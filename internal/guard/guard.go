// Package guard watches process and system memory and goroutine counts and
// triggers a graceful shutdown when a limit is exceeded.
package guard

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/aleister1102/filestatus/internal/config"
	"github.com/rs/zerolog"
)

// warnRatio is the fraction of a limit at which a warning is logged
const warnRatio = 0.8

// Guard samples resource usage on an interval
type Guard struct {
	cfg     config.GuardConfig
	logger  zerolog.Logger
	sampler Sampler

	mu         sync.Mutex
	onExceeded func(reason string)
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	triggered  bool
}

// New creates a guard; sampler may be nil to use SampleUsage
func New(cfg config.GuardConfig, logger zerolog.Logger, sampler Sampler) *Guard {
	if sampler == nil {
		sampler = SampleUsage
	}
	if cfg.CheckIntervalSeconds <= 0 {
		cfg.CheckIntervalSeconds = config.DefaultGuardCheckIntervalSeconds
	}
	return &Guard{
		cfg:     cfg,
		logger:  logger.With().Str("component", "ResourceGuard").Logger(),
		sampler: sampler,
	}
}

// SetShutdownCallback sets the function called, at most once, when a limit is exceeded
func (g *Guard) SetShutdownCallback(fn func(reason string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExceeded = fn
}

// Start begins sampling until ctx is done or Stop is called
func (g *Guard) Start(ctx context.Context) {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	ctx, g.cancel = context.WithCancel(ctx)
	g.running = true
	g.mu.Unlock()

	g.wg.Add(1)
	go g.loop(ctx)

	g.logger.Info().
		Int64("max_memory_mb", g.cfg.MaxMemoryMB).
		Int("max_goroutines", g.cfg.MaxGoroutines).
		Float64("system_mem_threshold", g.cfg.SystemMemThreshold).
		Dur("check_interval", g.cfg.CheckInterval()).
		Bool("auto_shutdown", g.cfg.AutoShutdown).
		Msg("Resource guard started")
}

// Stop stops sampling and waits for the loop to exit
func (g *Guard) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	cancel := g.cancel
	g.mu.Unlock()

	cancel()
	g.wg.Wait()
	g.logger.Info().Msg("Resource guard stopped")
}

func (g *Guard) loop(ctx context.Context) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Check()
		}
	}
}

// Check takes one sample, logs warnings and returns the reason a limit was
// exceeded, or "" when usage is within limits.
func (g *Guard) Check() string {
	usage := g.sampler()
	g.logWarnings(usage)

	reason := g.exceeded(usage)
	if reason == "" {
		g.logger.Debug().
			Int64("alloc_mb", usage.AllocMB).
			Int64("sys_mb", usage.SysMB).
			Int("goroutines", usage.Goroutines).
			Int64("gc_count", usage.GCCount).
			Float64("system_mem_percent", usage.SystemMemUsedPercent).
			Msg("Current resource usage")
		return ""
	}

	g.logger.Error().
		Str("reason", reason).
		Int64("alloc_mb", usage.AllocMB).
		Int("goroutines", usage.Goroutines).
		Float64("system_mem_percent", usage.SystemMemUsedPercent).
		Msg("Resource limit exceeded")

	if g.cfg.AutoShutdown {
		g.trigger(reason)
	}
	return reason
}

// exceeded returns the first limit usage breaks; zero limits are disabled.
func (g *Guard) exceeded(usage Usage) string {
	if g.cfg.SystemMemThreshold > 0 && usage.SystemMemKnown && usage.SystemMemUsedPercent/100.0 > g.cfg.SystemMemThreshold {
		return fmt.Sprintf("system memory %.1f%% above threshold %.1f%%", usage.SystemMemUsedPercent, g.cfg.SystemMemThreshold*100)
	}
	if g.cfg.MaxMemoryMB > 0 && usage.AllocMB > g.cfg.MaxMemoryMB {
		// One forced collection before giving up on the process memory limit.
		runtime.GC()
		after := g.sampler()
		if after.AllocMB > g.cfg.MaxMemoryMB {
			return fmt.Sprintf("memory %dMB above limit %dMB", after.AllocMB, g.cfg.MaxMemoryMB)
		}
	}
	if g.cfg.MaxGoroutines > 0 && usage.Goroutines > g.cfg.MaxGoroutines {
		return fmt.Sprintf("goroutines %d above limit %d", usage.Goroutines, g.cfg.MaxGoroutines)
	}
	return ""
}

func (g *Guard) logWarnings(usage Usage) {
	if g.cfg.MaxMemoryMB > 0 && float64(usage.AllocMB) > float64(g.cfg.MaxMemoryMB)*warnRatio {
		g.logger.Warn().
			Int64("current_mb", usage.AllocMB).
			Int64("limit_mb", g.cfg.MaxMemoryMB).
			Msg("Memory usage approaching limit")
	}
	if g.cfg.MaxGoroutines > 0 && float64(usage.Goroutines) > float64(g.cfg.MaxGoroutines)*warnRatio {
		g.logger.Warn().
			Int("current", usage.Goroutines).
			Int("limit", g.cfg.MaxGoroutines).
			Msg("Goroutine count approaching limit")
	}
}

func (g *Guard) trigger(reason string) {
	g.mu.Lock()
	if g.triggered {
		g.mu.Unlock()
		return
	}
	g.triggered = true
	callback := g.onExceeded
	g.mu.Unlock()

	if callback == nil {
		g.logger.Warn().Msg("No shutdown callback set, cannot trigger graceful shutdown")
		return
	}
	g.logger.Info().Msg("Calling shutdown callback due to resource limits")
	callback(reason)
}
