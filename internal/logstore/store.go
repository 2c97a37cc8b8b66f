// Package logstore keeps a capacity-bounded, most-recent-first log of records
// per workspace in process memory.
//
// A Store is an operational cache, not a system of record: it lives for the
// lifetime of the process that created it and each replica has its own view.
// Durable history belongs to the repository package.
package logstore

import (
	"bytes"
	"sort"
	"sync"

	"github.com/telhawk-systems/flowhook/internal/models"
)

// DefaultCapacity is the number of records kept per workspace. Operator
// tooling depends on this value.
const DefaultCapacity = 50

// Store maps workspace IDs to bounded logs.
//
// The map lock only guards log creation and lookup. Each workspace log has its
// own lock, so writers to different workspaces never contend and writers to
// the same workspace are serialised.
type Store struct {
	capacity int

	mu   sync.RWMutex
	logs map[string]*boundedLog
}

type boundedLog struct {
	mu      sync.RWMutex
	records []models.LogRecord // newest first
}

// New creates an empty Store. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		logs:     make(map[string]*boundedLog),
	}
}

// Capacity returns the per-workspace bound.
func (s *Store) Capacity() int {
	return s.capacity
}

// Append inserts rec at the front of the workspace log, evicting the oldest
// records beyond capacity. The store keeps its own copy of rec.Details.
func (s *Store) Append(workspaceID string, rec models.LogRecord) {
	l := s.logFor(workspaceID)
	rec.Details = bytes.Clone(rec.Details)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.records) + 1
	if n > s.capacity {
		n = s.capacity
	}
	next := make([]models.LogRecord, n)
	next[0] = rec
	copy(next[1:], l.records)
	l.records = next
}

// List returns a copy of the workspace log, newest first. Unknown workspaces
// yield an empty, non-nil slice.
func (s *Store) List(workspaceID string) []models.LogRecord {
	s.mu.RLock()
	l, ok := s.logs[workspaceID]
	s.mu.RUnlock()
	if !ok {
		return []models.LogRecord{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.LogRecord, len(l.records))
	for i, rec := range l.records {
		rec.Details = bytes.Clone(rec.Details)
		out[i] = rec
	}
	return out
}

// Len returns the number of records held for a workspace.
func (s *Store) Len(workspaceID string) int {
	s.mu.RLock()
	l, ok := s.logs[workspaceID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Workspaces returns the IDs with at least one record, sorted.
func (s *Store) Workspaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) logFor(workspaceID string) *boundedLog {
	s.mu.RLock()
	l, ok := s.logs[workspaceID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.logs[workspaceID]; !ok {
		l = &boundedLog{}
		s.logs[workspaceID] = l
	}
	return l
}
