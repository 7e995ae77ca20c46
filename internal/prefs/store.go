package prefs

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/aleister1102/filestatus/internal/common"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
)

var (
	// ErrKeyNotFound indicates the store holds no value for a key
	ErrKeyNotFound = errors.New("preference not found")
	// ErrTypeMismatch indicates a stored value cannot be coerced to the requested type
	ErrTypeMismatch = errors.New("preference has wrong type")
)

// Store is the typed configuration store checkers bind their settings to.
type Store interface {
	GetBool(key string) (bool, error)
	GetString(key string) (string, error)
	GetLong(key string) (int64, error)
	AddObserver(key string, o Observer) error
	RemoveObserver(key string, o Observer) error
}

// MemoryStore is a Store backed by a map. It is safe for concurrent use.
// Observers are notified after the lock is released, so they may read the store.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string]any
	closed   bool
	notifier *Notifier
}

// NewMemoryStore creates an empty store
func NewMemoryStore(logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]any),
		notifier: NewNotifier(logger),
	}
}

// GetBool returns key coerced to a bool
func (s *MemoryStore) GetBool(key string) (bool, error) {
	var out bool
	err := s.get(key, &out)
	return out, err
}

// GetString returns key coerced to a string
func (s *MemoryStore) GetString(key string) (string, error) {
	var out string
	err := s.get(key, &out)
	return out, err
}

// GetLong returns key coerced to an int64
func (s *MemoryStore) GetLong(key string) (int64, error) {
	var out int64
	err := s.get(key, &out)
	return out, err
}

// AddObserver subscribes o to changes of key
func (s *MemoryStore) AddObserver(key string, o Observer) error {
	if s.isClosed() {
		return fmt.Errorf("add observer for '%s': %w", key, common.ErrConfigUnavailable)
	}
	s.notifier.Subscribe(key, o)
	return nil
}

// RemoveObserver unsubscribes o from key
func (s *MemoryStore) RemoveObserver(key string, o Observer) error {
	if s.isClosed() {
		return fmt.Errorf("remove observer for '%s': %w", key, common.ErrConfigUnavailable)
	}
	return s.notifier.Unsubscribe(key, o)
}

// ObserverCount reports how many observers watch key
func (s *MemoryStore) ObserverCount(key string) int {
	return s.notifier.ObserverCount(key)
}

// Set stores value under key and notifies observers if the value changed
func (s *MemoryStore) Set(key string, value any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return common.ErrConfigUnavailable
	}
	old, existed := s.values[key]
	s.values[key] = value
	s.mu.Unlock()

	if !existed || !reflect.DeepEqual(old, value) {
		s.notifier.Notify(key)
	}
	return nil
}

// Delete removes key and notifies observers if it was present
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return common.ErrConfigUnavailable
	}
	_, existed := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()

	if existed {
		s.notifier.Notify(key)
	}
	return nil
}

// Replace swaps the whole value set and notifies observers of every key
// that was added, removed or changed. It returns the changed keys in order.
func (s *MemoryStore) Replace(values map[string]any) ([]string, error) {
	next := make(map[string]any, len(values))
	for k, v := range values {
		next[k] = v
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, common.ErrConfigUnavailable
	}
	changed := diffKeys(s.values, next)
	s.values = next
	s.mu.Unlock()

	for _, key := range changed {
		s.notifier.Notify(key)
	}
	return changed, nil
}

// Keys returns the stored keys in sorted order
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close makes the store unavailable. Later reads and observer changes fail with ErrConfigUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *MemoryStore) get(key string, out any) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("read '%s': %w", key, common.ErrConfigUnavailable)
	}
	raw, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("read '%s': %w", key, ErrKeyNotFound)
	}
	// WeakDecode truncates floats into integers, so 1.5 minutes would read as 1.
	if _, wantsInt := out.(*int64); wantsInt && isFractional(raw) {
		return fmt.Errorf("read '%s' (%v): %w: not a whole number", key, raw, ErrTypeMismatch)
	}
	if err := mapstructure.WeakDecode(raw, out); err != nil {
		return fmt.Errorf("read '%s' (%T): %w: %v", key, raw, ErrTypeMismatch, err)
	}
	return nil
}

func isFractional(raw any) bool {
	switch v := raw.(type) {
	case float64:
		return v != math.Trunc(v)
	case float32:
		return float64(v) != math.Trunc(float64(v))
	}
	return false
}

func diffKeys(old, next map[string]any) []string {
	var changed []string
	for k, v := range next {
		if prev, ok := old[k]; !ok || !reflect.DeepEqual(prev, v) {
			changed = append(changed, k)
		}
	}
	for k := range old {
		if _, ok := next[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
