package checker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aleister1102/filestatus/internal/prefs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allReasons = []Reason{ReasonBackgroundCheck, ReasonOnFocusCheck, ReasonFileChanged, ReasonForcedCheck}

func newTestDisk(t *testing.T) (*DiskChecker, *prefs.MemoryStore, *fakeClock) {
	t.Helper()
	store := prefs.NewMemoryStore(zerolog.Nop())
	clock := newFakeClock()
	d := NewDiskChecker(newTestDeps(store, clock))
	require.NoError(t, d.Initialize())
	return d, store, clock
}

func TestDiskChecker_Identity(t *testing.T) {
	d, store, _ := newTestDisk(t)

	assert.Equal(t, KindDisk, d.Kind())
	assert.Equal(t, "Disk", d.Name())
	assert.Equal(t, 1, store.ObserverCount(PrefDiskEnabled))
	assert.Equal(t, 1, store.ObserverCount(PrefDiskBackgroundEnabled))
	assert.Equal(t, 1, store.ObserverCount(PrefDiskBackgroundMinutes))
}

func TestDiskChecker_RemoteIsUnchanged(t *testing.T) {
	d, _, clock := newTestDisk(t)
	res := &fakeResource{uri: "https://example.com/a.txt", local: false, changed: true}

	for _, reason := range allReasons {
		assert.Equal(t, StatusUnchanged, d.UpdateFileStatus(context.Background(), res, reason), reason.String())
	}

	d.Cache().RecordChecked(res.uri, clock.Now().Add(-time.Hour*24))
	for _, reason := range allReasons {
		assert.Equal(t, StatusUnchanged, d.UpdateFileStatus(context.Background(), res, reason), reason.String())
	}
	assert.Zero(t, res.calls.Load())
}

func TestDiskChecker_ForcedIgnoresFreshCache(t *testing.T) {
	d, _, clock := newTestDisk(t)
	res := &fakeResource{uri: "file:///tmp/a.txt", local: true, changed: true}
	d.Cache().RecordChecked(res.uri, clock.Now())

	status := d.UpdateFileStatus(context.Background(), res, ReasonForcedCheck)

	assert.Equal(t, StatusChanged, status)
	assert.Equal(t, int32(1), res.calls.Load())
}

func TestDiskChecker_FreshCacheSuppressesProbe(t *testing.T) {
	d, _, clock := newTestDisk(t)
	res := &fakeResource{uri: "file:///tmp/a.txt", local: true, changed: true}
	d.Cache().RecordChecked(res.uri, clock.Now())
	clock.Advance(DefaultBackgroundDuration - time.Second)

	for _, reason := range []Reason{ReasonOnFocusCheck, ReasonBackgroundCheck, ReasonFileChanged} {
		assert.Equal(t, StatusUnchanged, d.UpdateFileStatus(context.Background(), res, reason))
	}
	assert.Zero(t, res.calls.Load())
}

func TestDiskChecker_StaleRunsProbeAndRecords(t *testing.T) {
	d, _, clock := newTestDisk(t)
	res := &fakeResource{uri: "file:///tmp/a.txt", local: true, changed: true}

	assert.Equal(t, StatusChanged, d.UpdateFileStatus(context.Background(), res, ReasonOnFocusCheck))
	last, ok := d.Cache().LastChecked(res.uri)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), last)

	// Fresh now: suppressed and not re-recorded.
	clock.Advance(time.Minute)
	assert.Equal(t, StatusUnchanged, d.UpdateFileStatus(context.Background(), res, ReasonOnFocusCheck))
	last, _ = d.Cache().LastChecked(res.uri)
	assert.Equal(t, clock.Now().Add(-time.Minute), last)

	clock.Advance(DefaultBackgroundDuration)
	res.changed = false
	assert.Equal(t, StatusUnchanged, d.UpdateFileStatus(context.Background(), res, ReasonBackgroundCheck))
	assert.Equal(t, int32(2), res.calls.Load())
}

func TestDiskChecker_ProbeFailureIsUnchanged(t *testing.T) {
	d, _, _ := newTestDisk(t)
	res := &fakeResource{uri: "file:///tmp/a.txt", local: true, changed: true, err: errors.New("permission denied")}

	assert.Equal(t, StatusUnchanged, d.UpdateFileStatus(context.Background(), res, ReasonForcedCheck))
	_, ok := d.Cache().LastChecked(res.uri)
	assert.False(t, ok, "failed probe does not refresh the cache")
}

func TestDiskChecker_ExpiredContextDoesNotRecord(t *testing.T) {
	d, _, _ := newTestDisk(t)
	res := &fakeResource{uri: "file:///tmp/a.txt", local: true, changed: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, StatusUnchanged, d.UpdateFileStatus(ctx, res, ReasonForcedCheck))
	assert.Equal(t, int32(1), res.calls.Load())
	_, ok := d.Cache().LastChecked(res.uri)
	assert.False(t, ok, "a result delivered after the deadline leaves the entry stale")

	assert.Equal(t, StatusChanged, d.UpdateFileStatus(context.Background(), res, ReasonOnFocusCheck))
}

func TestDiskChecker_IntervalFollowsPrefs(t *testing.T) {
	d, store, clock := newTestDisk(t)
	res := &fakeResource{uri: "file:///tmp/a.txt", local: true, changed: true}

	require.NoError(t, store.Set(PrefDiskBackgroundMinutes, 1))
	assert.Equal(t, 60*time.Second, d.Settings().BackgroundDuration)

	d.Cache().RecordChecked(res.uri, clock.Now())
	clock.Advance(time.Minute)

	assert.Equal(t, StatusChanged, d.UpdateFileStatus(context.Background(), res, ReasonOnFocusCheck))
}

func TestDiskChecker_BackgroundEnabledFollowsPrefs(t *testing.T) {
	d, store, _ := newTestDisk(t)
	assert.False(t, d.IsBackgroundCheckingEnabled())

	require.NoError(t, store.Set(PrefDiskBackgroundEnabled, true))
	assert.True(t, d.IsBackgroundCheckingEnabled())

	require.NoError(t, store.Set(PrefDiskEnabled, false))
	assert.False(t, d.IsActive())
}

func TestRemoteChecker(t *testing.T) {
	store := prefs.NewMemoryStore(zerolog.Nop())
	clock := newFakeClock()
	r := NewRemoteChecker(newTestDeps(store, clock))
	require.NoError(t, r.Initialize())
	defer r.Shutdown()

	local := &fakeResource{uri: "file:///tmp/a.txt", local: true, changed: true}
	assert.Equal(t, StatusInapplicable, r.UpdateFileStatus(context.Background(), local, ReasonForcedCheck))

	remote := &fakeResource{uri: "https://example.com/a.txt", changed: true}
	assert.Equal(t, StatusChanged, r.UpdateFileStatus(context.Background(), remote, ReasonOnFocusCheck))
	assert.Equal(t, StatusUnchanged, r.UpdateFileStatus(context.Background(), remote, ReasonOnFocusCheck))
	assert.Equal(t, StatusChanged, r.UpdateFileStatus(context.Background(), remote, ReasonForcedCheck))
	assert.Equal(t, int32(2), remote.calls.Load())
}

func TestDiskChecker_BackgroundOptIn(t *testing.T) {
	store := prefs.NewMemoryStore(zerolog.Nop())
	require.NoError(t, store.Set(PrefDiskBackgroundEnabled, true))

	bare := NewBase(Options{
		Kind:     KindDisk,
		Name:     "Bare",
		Keys:     PrefKeys{BackgroundEnabled: PrefDiskBackgroundEnabled},
		Defaults: DefaultSettings(),
	}, newTestDeps(store, newFakeClock()))
	require.NoError(t, bare.Initialize())
	assert.False(t, bare.IsBackgroundCheckingEnabled(), "base without opt-in ignores the setting")

	d := NewDiskChecker(newTestDeps(store, newFakeClock()))
	require.NoError(t, d.Initialize())
	assert.True(t, d.IsBackgroundCheckingEnabled())
}
