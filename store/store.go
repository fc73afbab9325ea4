// Package store provides the in-memory reference implementation of the
// core.RecordStore contract. It is the default sink for events, gate
// results and outcome records when no external persistence is wired in.
package store

import (
	"sync"

	"github.com/hupe1980/socialmesh/core"
)

// MemoryStore is a bounded, append-only in-memory record store. Safe for
// concurrent use. When a section reaches its capacity the oldest entries
// are discarded first.
type MemoryStore struct {
	mu          sync.RWMutex
	maxRecords  int
	events      []core.Event
	gateResults []core.GateResult
	outcomes    []core.OutcomeRecord
}

// Options configures a MemoryStore.
type Options struct {
	// MaxRecords bounds each record section. Defaults to 10000.
	MaxRecords int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(optFns ...func(o *Options)) *MemoryStore {
	opts := Options{MaxRecords: 10000}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRecords < 1 {
		opts.MaxRecords = 1
	}
	return &MemoryStore{maxRecords: opts.MaxRecords}
}

// AppendEvent implements core.RecordStore.
func (s *MemoryStore) AppendEvent(event core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = appendBounded(s.events, event, s.maxRecords)
	return nil
}

// AppendGateResult implements core.RecordStore.
func (s *MemoryStore) AppendGateResult(result core.GateResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gateResults = appendBounded(s.gateResults, result, s.maxRecords)
	return nil
}

// AppendOutcome implements core.RecordStore.
func (s *MemoryStore) AppendOutcome(record core.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = appendBounded(s.outcomes, record, s.maxRecords)
	return nil
}

// Outcomes implements core.RecordStore. It returns up to limit most recent
// outcome records, newest last. A non-positive limit returns all retained
// records.
func (s *MemoryStore) Outcomes(limit int) ([]core.OutcomeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.outcomes)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.OutcomeRecord, n)
	copy(out, s.outcomes[len(s.outcomes)-n:])
	return out, nil
}

// Events returns a copy of all retained events, oldest first.
func (s *MemoryStore) Events() []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Event, len(s.events))
	copy(out, s.events)
	return out
}

// GateResults returns a copy of all retained gate results, oldest first.
func (s *MemoryStore) GateResults() []core.GateResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.GateResult, len(s.gateResults))
	copy(out, s.gateResults)
	return out
}

func appendBounded[T any](buf []T, item T, max int) []T {
	buf = append(buf, item)
	if len(buf) > max {
		buf = buf[len(buf)-max:]
	}
	return buf
}
