// Package observability provides in-process counters for catalog activity.
package observability

import (
	"sync"
	"time"
)

// Stats tracks registration and event capture activity since process start.
// All methods are O(1) and thread-safe.
type Stats struct {
	mu sync.RWMutex

	startedAt time.Time

	identifiersCreated  int64
	identifiersExisting int64
	identifiersFailed   int64

	detailsCreated int64
	detailsFailed  int64

	eventsByKind map[string]int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UptimeSeconds       int64            `json:"uptime_seconds"`
	IdentifiersCreated  int64            `json:"identifiers_created"`
	IdentifiersExisting int64            `json:"identifiers_existing"`
	IdentifiersFailed   int64            `json:"identifiers_failed"`
	DetailsCreated      int64            `json:"details_created"`
	DetailsFailed       int64            `json:"details_failed"`
	EventsByKind        map[string]int64 `json:"events_by_kind"`
}

// NewStats creates a stats tracker.
func NewStats() *Stats {
	return &Stats{
		startedAt:    time.Now(),
		eventsByKind: make(map[string]int64),
	}
}

// RecordIdentifiers accumulates one registration call's outcome counts.
func (s *Stats) RecordIdentifiers(created, existing, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identifiersCreated += int64(created)
	s.identifiersExisting += int64(existing)
	s.identifiersFailed += int64(failed)
}

// RecordDetails accumulates one detail registration call's outcome counts.
func (s *Stats) RecordDetails(created, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailsCreated += int64(created)
	s.detailsFailed += int64(failed)
}

// RecordEvent counts one captured event of the given kind.
func (s *Stats) RecordEvent(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsByKind[kind]++
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKind := make(map[string]int64, len(s.eventsByKind))
	for k, v := range s.eventsByKind {
		byKind[k] = v
	}

	return Snapshot{
		UptimeSeconds:       int64(time.Since(s.startedAt).Seconds()),
		IdentifiersCreated:  s.identifiersCreated,
		IdentifiersExisting: s.identifiersExisting,
		IdentifiersFailed:   s.identifiersFailed,
		DetailsCreated:      s.detailsCreated,
		DetailsFailed:       s.detailsFailed,
		EventsByKind:        byKind,
	}
}
