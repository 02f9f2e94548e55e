// Package state holds the backend's cache of last-known power intent per AGV.
// It is not authoritative over the robot's real state: it records what the
// backend last told the robot to do, nothing more.
package state

import (
	"sync"
)

// Store maps an AGV identifier to its last commanded power state. Unknown
// identifiers read as not running; entries are never deleted.
type Store interface {
	// Get returns the cached power state for agvID, false if never seen.
	Get(agvID string) bool

	// Set unconditionally overwrites the cached power state for agvID.
	Set(agvID string, running bool)
}

type memoryStore struct {
	mu      sync.RWMutex
	running map[string]bool
}

// NewMemoryStore returns an in-process Store. State is lost on restart,
// which is acceptable: the default "not running" is always safe.
func NewMemoryStore() Store {
	return &memoryStore{
		running: make(map[string]bool),
	}
}

func (s *memoryStore) Get(agvID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running[agvID]
}

func (s *memoryStore) Set(agvID string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[agvID] = running
}
