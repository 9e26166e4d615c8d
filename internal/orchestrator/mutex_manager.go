package orchestrator

import (
	"sync"

	"github.com/rs/zerolog"
)

// MonitorMutexManager manages per-monitor mutexes so the same monitor is
// never checked concurrently. Distinct monitors proceed in parallel.
type MonitorMutexManager struct {
	logger   zerolog.Logger
	mutexes  map[string]*sync.Mutex
	mapMutex sync.RWMutex
}

// NewMonitorMutexManager creates a new MonitorMutexManager.
func NewMonitorMutexManager(logger zerolog.Logger) *MonitorMutexManager {
	return &MonitorMutexManager{
		logger:  logger.With().Str("component", "MonitorMutexManager").Logger(),
		mutexes: make(map[string]*sync.Mutex),
	}
}

// GetMutex gets or creates the mutex for a monitor ID using double-checked
// locking.
func (mm *MonitorMutexManager) GetMutex(monitorID string) *sync.Mutex {
	if mutex := mm.tryGetExistingMutex(monitorID); mutex != nil {
		return mutex
	}
	return mm.getOrCreateMutex(monitorID)
}

// CleanupUnusedMutexes removes mutexes for monitors that no longer exist.
func (mm *MonitorMutexManager) CleanupUnusedMutexes(activeIDs []string) {
	activeSet := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		activeSet[id] = struct{}{}
	}

	mm.mapMutex.Lock()
	defer mm.mapMutex.Unlock()

	removedCount := 0
	for id := range mm.mutexes {
		if _, isActive := activeSet[id]; !isActive {
			delete(mm.mutexes, id)
			removedCount++
		}
	}
	if removedCount > 0 {
		mm.logger.Debug().
			Int("removed_mutexes", removedCount).
			Int("remaining_mutexes", len(mm.mutexes)).
			Msg("Cleaned up unused monitor check mutexes")
	}
}

func (mm *MonitorMutexManager) tryGetExistingMutex(monitorID string) *sync.Mutex {
	mm.mapMutex.RLock()
	defer mm.mapMutex.RUnlock()

	return mm.mutexes[monitorID]
}

func (mm *MonitorMutexManager) getOrCreateMutex(monitorID string) *sync.Mutex {
	mm.mapMutex.Lock()
	defer mm.mapMutex.Unlock()

	// Another goroutine might have created it between the two locks.
	if mutex, exists := mm.mutexes[monitorID]; exists {
		return mutex
	}

	mm.mutexes[monitorID] = &sync.Mutex{}
	return mm.mutexes[monitorID]
}
