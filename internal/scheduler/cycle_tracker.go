package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// CycleTracker tracks the resources that changed within a check round
type CycleTracker struct {
	changedURIs    map[string]struct{}
	currentCycleID string
	mutex          sync.RWMutex
	maxCycles      int
	currentCycle   int
}

// NewCycleTracker creates a new CycleTracker; maxCycles 0 means unlimited
func NewCycleTracker(maxCycles int) *CycleTracker {
	return &CycleTracker{
		changedURIs: make(map[string]struct{}),
		maxCycles:   maxCycles,
	}
}

// StartCycle begins a new round, increments the counter and returns the round ID.
func (ct *CycleTracker) StartCycle(now time.Time) string {
	ct.mutex.Lock()
	defer ct.mutex.Unlock()

	ct.currentCycle++
	ct.currentCycleID = fmt.Sprintf("round-%s-%d", now.Format("20060102-150405"), ct.currentCycle)
	ct.changedURIs = make(map[string]struct{})
	return ct.currentCycleID
}

// EndCycle returns the changed resources of the round and clears them.
func (ct *CycleTracker) EndCycle() []string {
	ct.mutex.Lock()
	defer ct.mutex.Unlock()

	changed := make([]string, 0, len(ct.changedURIs))
	for uri := range ct.changedURIs {
		changed = append(changed, uri)
	}
	sort.Strings(changed)
	ct.changedURIs = make(map[string]struct{})
	return changed
}

// ShouldContinue returns false once the maximum number of rounds has run.
func (ct *CycleTracker) ShouldContinue() bool {
	ct.mutex.RLock()
	defer ct.mutex.RUnlock()
	if ct.maxCycles == 0 {
		return true
	}
	return ct.currentCycle < ct.maxCycles
}

// AddChangedURI marks a resource as changed in the current round
func (ct *CycleTracker) AddChangedURI(uri string) {
	if uri == "" {
		return
	}

	ct.mutex.Lock()
	defer ct.mutex.Unlock()
	ct.changedURIs[uri] = struct{}{}
}

// CyclesRun returns how many rounds have started
func (ct *CycleTracker) CyclesRun() int {
	ct.mutex.RLock()
	defer ct.mutex.RUnlock()
	return ct.currentCycle
}
