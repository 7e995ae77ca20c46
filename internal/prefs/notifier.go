package prefs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotSubscribed is returned by Unsubscribe when the observer is not registered for the key.
var ErrNotSubscribed = errors.New("observer not subscribed")

// Observer receives the name of a preference whose value changed.
// Implementations must be comparable (pointer receivers), since the notifier
// identifies subscriptions by observer equality.
type Observer interface {
	ObservePref(key string) error
}

// Notifier is a subscribe/unsubscribe registry keyed by preference name.
// Delivery is synchronous on the goroutine calling Notify.
type Notifier struct {
	mu        sync.RWMutex
	observers map[string][]Observer
	logger    zerolog.Logger
}

// NewNotifier creates an empty notifier
func NewNotifier(logger zerolog.Logger) *Notifier {
	return &Notifier{
		observers: make(map[string][]Observer),
		logger:    logger.With().Str("component", "PrefsNotifier").Logger(),
	}
}

// Subscribe registers o for changes to key. Subscribing the same observer twice is a no-op.
func (n *Notifier) Subscribe(key string, o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, existing := range n.observers[key] {
		if existing == o {
			return
		}
	}
	n.observers[key] = append(n.observers[key], o)
}

// Unsubscribe removes o from key. Returns ErrNotSubscribed if o was not registered.
func (n *Notifier) Unsubscribe(key string, o Observer) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	list := n.observers[key]
	for i, existing := range list {
		if existing != o {
			continue
		}
		remaining := make([]Observer, 0, len(list)-1)
		remaining = append(remaining, list[:i]...)
		remaining = append(remaining, list[i+1:]...)
		if len(remaining) == 0 {
			delete(n.observers, key)
		} else {
			n.observers[key] = remaining
		}
		return nil
	}
	return fmt.Errorf("unsubscribe '%s': %w", key, ErrNotSubscribed)
}

// Notify delivers key to every observer subscribed to it.
// A failing or panicking observer is logged and the remaining observers still run.
func (n *Notifier) Notify(key string) {
	n.mu.RLock()
	list := append([]Observer(nil), n.observers[key]...)
	n.mu.RUnlock()

	for _, o := range list {
		n.deliver(key, o)
	}
}

// ObserverCount returns how many observers are subscribed to key
func (n *Notifier) ObserverCount(key string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers[key])
}

func (n *Notifier) deliver(key string, o Observer) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().
				Str("key", key).
				Interface("panic", r).
				Msg("Preference observer panicked")
		}
	}()

	if err := o.ObservePref(key); err != nil {
		n.logger.Error().Err(err).Str("key", key).Msg("Preference observer failed")
	}
}
