package dispatcher

import (
	"sync"

	"github.com/rs/zerolog"
)

// KeyMutexManager hands out one mutex per key so that work on the same
// (checker, resource) pair never overlaps.
type KeyMutexManager struct {
	logger   zerolog.Logger
	mutexes  map[string]*sync.Mutex
	mapMutex sync.RWMutex
}

// NewKeyMutexManager creates a new KeyMutexManager
func NewKeyMutexManager(logger zerolog.Logger) *KeyMutexManager {
	return &KeyMutexManager{
		logger:  logger.With().Str("component", "KeyMutexManager").Logger(),
		mutexes: make(map[string]*sync.Mutex),
	}
}

// GetMutex gets or creates the mutex for key using double-checked locking
func (m *KeyMutexManager) GetMutex(key string) *sync.Mutex {
	if mutex := m.tryGetExistingMutex(key); mutex != nil {
		return mutex
	}
	return m.getOrCreateMutex(key)
}

// CleanupUnusedMutexes removes mutexes whose key is not in activeKeys.
// A mutex that is currently held is kept until a later cleanup.
func (m *KeyMutexManager) CleanupUnusedMutexes(activeKeys []string) int {
	active := make(map[string]struct{}, len(activeKeys))
	for _, key := range activeKeys {
		active[key] = struct{}{}
	}

	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	removed, busy := 0, 0
	for key, mutex := range m.mutexes {
		if _, ok := active[key]; ok {
			continue
		}
		if !mutex.TryLock() {
			busy++
			continue
		}
		delete(m.mutexes, key)
		mutex.Unlock()
		removed++
	}

	if removed > 0 || busy > 0 {
		m.logger.Debug().
			Int("removed_mutexes", removed).
			Int("busy_mutexes", busy).
			Int("remaining_mutexes", len(m.mutexes)).
			Msg("Cleaned up unused check mutexes")
	}
	return removed
}

// GetMutexCount returns the current number of mutexes
func (m *KeyMutexManager) GetMutexCount() int {
	m.mapMutex.RLock()
	defer m.mapMutex.RUnlock()
	return len(m.mutexes)
}

func (m *KeyMutexManager) tryGetExistingMutex(key string) *sync.Mutex {
	m.mapMutex.RLock()
	defer m.mapMutex.RUnlock()
	return m.mutexes[key]
}

func (m *KeyMutexManager) getOrCreateMutex(key string) *sync.Mutex {
	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	// Another goroutine may have created it between the two locks.
	if mutex, exists := m.mutexes[key]; exists {
		return mutex
	}
	m.mutexes[key] = &sync.Mutex{}
	return m.mutexes[key]
}
