package appeal

import (
	"context"
	"sort"
	"sync"

	"trafficase/internal/appeal/models"
	"trafficase/pkg/platform/sentinel"
	"trafficase/pkg/requestcontext"
)

// InMemoryStore keeps appeals in a map. Used in tests and when no database
// is configured.
type InMemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*models.Appeal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:  1,
		records: make(map[int64]*models.Appeal),
	}
}

func (s *InMemoryStore) Create(_ context.Context, appeal *models.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appeal.ID = s.nextID
	s.nextID++
	cp := *appeal
	s.records[cp.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

func (s *InMemoryStore) FindByOffense(_ context.Context, offenseID int64) ([]models.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Appeal
	for _, record := range s.records {
		if record.OffenseID == offenseID {
			matched = append(matched, *record)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status string, page, size int) ([]models.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Appeal
	for _, record := range s.records {
		if record.ProcessStatus == status {
			matched = append(matched, *record)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

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

func (s *InMemoryStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	record.ProcessStatus = status
	record.UpdatedAt = requestcontext.Now(ctx)
	return nil
}
