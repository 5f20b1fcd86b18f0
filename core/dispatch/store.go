package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrRecordNotFound is returned when no record exists for the job.
	ErrRecordNotFound = errors.New("dispatch: record not found")
	// ErrRecordExists is returned when a record was already created for the job.
	ErrRecordExists = errors.New("dispatch: record already exists")
)

// RecordStore persists dispatch records. Update is the single atomic decision
// point of the subsystem: implementations must guarantee that concurrent
// Update calls on the same record never interleave, so a state precondition
// checked inside fn holds when the mutation is persisted. fn returns false to
// leave the record untouched.
type RecordStore interface {
	Create(ctx context.Context, rec *DispatchRecord) error
	Get(ctx context.Context, jobID string) (*DispatchRecord, error)
	Update(ctx context.Context, jobID string, fn func(*DispatchRecord) bool) (*DispatchRecord, error)
	// DueForExpiry returns the job IDs of notified records whose current
	// round deadline is at or before now. Used by the periodic sweep.
	DueForExpiry(ctx context.Context, now time.Time) ([]string, error)
	Close() error
}

// Clone returns a deep copy of the record so callers can hand snapshots out
// without exposing store-internal state.
func (r *DispatchRecord) Clone() *DispatchRecord {
	cp := *r
	cp.Rounds = make([]Round, len(r.Rounds))
	for i, round := range r.Rounds {
		cp.Rounds[i] = round
		cp.Rounds[i].Notified = append([]Notification(nil), round.Notified...)
	}
	cp.Responses = append([]Response(nil), r.Responses...)
	return &cp
}

// MemoryRecordStore keeps records in memory. It backs tests and
// single-process deployments.
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[string]*DispatchRecord
}

// NewMemoryRecordStore creates an empty store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*DispatchRecord)}
}

// Create implements RecordStore.
func (s *MemoryRecordStore) Create(_ context.Context, rec *DispatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.JobID]; ok {
		return ErrRecordExists
	}
	s.records[rec.JobID] = rec.Clone()
	return nil
}

// Get implements RecordStore.
func (s *MemoryRecordStore) Get(_ context.Context, jobID string) (*DispatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[jobID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Update implements RecordStore. The store mutex serializes all updates, so
// fn observes the latest persisted state.
func (s *MemoryRecordStore) Update(_ context.Context, jobID string, fn func(*DispatchRecord) bool) (*DispatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[jobID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	next := rec.Clone()
	if fn(next) {
		s.records[jobID] = next
	}
	return next.Clone(), nil
}

// DueForExpiry implements RecordStore.
func (s *MemoryRecordStore) DueForExpiry(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []string
	for id, rec := range s.records {
		if rec.State != StateNotified {
			continue
		}
		if round := rec.CurrentRound(); round != nil && !round.ExpiresAt.After(now) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	return due, nil
}

// Close implements RecordStore.
func (s *MemoryRecordStore) Close() error { return nil }
