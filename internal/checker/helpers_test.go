package checker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleister1102/filestatus/internal/prefs"
	"github.com/rs/zerolog"
)

type fakeResource struct {
	uri     string
	local   bool
	changed bool
	err     error
	calls   atomic.Int32
}

func (f *fakeResource) URI() string   { return f.uri }
func (f *fakeResource) IsLocal() bool { return f.local }
func (f *fakeResource) HasChanged(ctx context.Context) (bool, error) {
	f.calls.Add(1)
	return f.changed, f.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestDeps(store prefs.Store, clock *fakeClock) Deps {
	return Deps{Store: store, Logger: zerolog.Nop(), Clock: clock.Now}
}
