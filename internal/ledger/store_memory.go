package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"trafficase/pkg/platform/sentinel"
)

// InMemoryStore keeps ledger entries in a map guarded by a mutex. Used for
// dependency-free deployments and as the test double for the guard.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	nextID  int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]*Entry)}
}

func (s *InMemoryStore) Insert(_ context.Context, key string, now time.Time) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok {
		cp := *existing
		return &cp, false, nil
	}

	s.nextID++
	entry := &Entry{
		ID:             s.nextID,
		IdempotencyKey: key,
		BusinessStatus: StatusProcessing,
		RequestParams:  PhasePending,
		Attempts:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.entries[key] = entry
	cp := *entry
	return &cp, true, nil
}

func (s *InMemoryStore) FindByKey(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *InMemoryStore) MarkSuccess(_ context.Context, key string, businessID int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	entry.BusinessStatus = StatusSuccess
	entry.RequestParams = PhaseDone
	entry.BusinessID = &businessID
	entry.UpdatedAt = now
	return true, nil
}

func (s *InMemoryStore) MarkFailure(_ context.Context, key, reason string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	entry.BusinessStatus = StatusFailed
	entry.RequestParams = TruncateDiagnostic(reason)
	entry.UpdatedAt = now
	return true, nil
}

func (s *InMemoryStore) RetryFailed(_ context.Context, key string, maxAttempts int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.BusinessStatus != StatusFailed || entry.Attempts >= maxAttempts {
		return false, nil
	}
	entry.BusinessStatus = StatusProcessing
	entry.RequestParams = PhasePending
	entry.Attempts++
	entry.UpdatedAt = now
	return true, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status BusinessStatus, page, size int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Entry
	for _, entry := range s.entries {
		if entry.BusinessStatus == status {
			matched = append(matched, *entry)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(matched) {
		return nil, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (s *InMemoryStore) ReapExpired(_ context.Context, cutoff time.Time, reason string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped int64
	for _, entry := range s.entries {
		if entry.BusinessStatus == StatusProcessing && entry.UpdatedAt.Before(cutoff) {
			entry.BusinessStatus = StatusFailed
			entry.RequestParams = TruncateDiagnostic(reason)
			entry.UpdatedAt = now
			reaped++
		}
	}
	return reaped, nil
}
