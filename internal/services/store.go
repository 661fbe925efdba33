package services

import (
	"sync"
	"time"

	"panelctl/internal/api"
)

// Source names where a snapshot came from.
type Source string

const (
	SourceRefresh Source = "refresh"
	SourceStream  Source = "stream"
)

// Store holds the current service list. Every write replaces the whole
// list; whichever of refresh and stream writes last wins.
type Store struct {
	mu        sync.RWMutex
	services  []api.ServiceRecord
	updatedAt time.Time
	source    Source
	version   uint64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new list.
func (s *Store) Replace(services []api.ServiceRecord, at time.Time, source Source) {
	cp := make([]api.ServiceRecord, len(services))
	copy(cp, services)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = cp
	s.updatedAt = at
	s.source = source
	s.version++
}

// Snapshot returns a copy of the current list and when it was written.
func (s *Store) Snapshot() ([]api.ServiceRecord, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]api.ServiceRecord, len(s.services))
	copy(cp, s.services)
	return cp, s.updatedAt
}

// Get returns the record for unit.
func (s *Store) Get(unit string) (api.ServiceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, svc := range s.services {
		if svc.Unit == unit {
			return svc, true
		}
	}
	return api.ServiceRecord{}, false
}

// Source reports which path wrote the current list.
func (s *Store) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Version increases with every Replace.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Clear forgets the list.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = nil
	s.updatedAt = time.Time{}
	s.source = ""
	s.version++
}
