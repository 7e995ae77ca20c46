package prefs

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingObserver remembers every key it was notified about
type recordingObserver struct {
	mu   sync.Mutex
	keys []string
	err  error
	boom bool
}

func (r *recordingObserver) ObservePref(key string) error {
	r.mu.Lock()
	r.keys = append(r.keys, key)
	r.mu.Unlock()
	if r.boom {
		panic("observer exploded")
	}
	return r.err
}

func (r *recordingObserver) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func TestNotifier_DeliversToSubscribers(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	a := &recordingObserver{}
	b := &recordingObserver{}

	n.Subscribe("diskStatusEnabled", a)
	n.Subscribe("diskStatusEnabled", b)
	n.Subscribe("gitEnabled", b)

	n.Notify("diskStatusEnabled")

	assert.Equal(t, []string{"diskStatusEnabled"}, a.Keys())
	assert.Equal(t, []string{"diskStatusEnabled"}, b.Keys())

	n.Notify("unrelated")
	assert.Len(t, a.Keys(), 1)
}

func TestNotifier_DuplicateSubscribeIsNoop(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	a := &recordingObserver{}

	n.Subscribe("k", a)
	n.Subscribe("k", a)

	assert.Equal(t, 1, n.ObserverCount("k"))
	n.Notify("k")
	assert.Len(t, a.Keys(), 1)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	a := &recordingObserver{}
	b := &recordingObserver{}
	n.Subscribe("k", a)
	n.Subscribe("k", b)

	require.NoError(t, n.Unsubscribe("k", a))
	n.Notify("k")

	assert.Empty(t, a.Keys())
	assert.Len(t, b.Keys(), 1)

	err := n.Unsubscribe("k", a)
	assert.ErrorIs(t, err, ErrNotSubscribed)

	require.NoError(t, n.Unsubscribe("k", b))
	assert.Equal(t, 0, n.ObserverCount("k"))
}

func TestNotifier_FailingObserverDoesNotBlockOthers(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	failing := &recordingObserver{err: errors.New("handler failed")}
	panicking := &recordingObserver{boom: true}
	healthy := &recordingObserver{}

	n.Subscribe("k", failing)
	n.Subscribe("k", panicking)
	n.Subscribe("k", healthy)

	assert.NotPanics(t, func() { n.Notify("k") })

	assert.Len(t, failing.Keys(), 1)
	assert.Len(t, panicking.Keys(), 1)
	assert.Len(t, healthy.Keys(), 1)
}

func TestNotifier_ConcurrentSubscribe(t *testing.T) {
	n := NewNotifier(zerolog.Nop())
	observers := make([]*recordingObserver, 50)
	var wg sync.WaitGroup

	for i := range observers {
		observers[i] = &recordingObserver{}
		wg.Add(1)
		go func(o *recordingObserver) {
			defer wg.Done()
			n.Subscribe("k", o)
		}(observers[i])
	}
	wg.Wait()

	assert.Equal(t, len(observers), n.ObserverCount("k"))

	for _, o := range observers {
		wg.Add(1)
		go func(o *recordingObserver) {
			defer wg.Done()
			assert.NoError(t, n.Unsubscribe("k", o))
		}(o)
	}
	wg.Wait()

	assert.Equal(t, 0, n.ObserverCount("k"))
}
