package memory

import (
	"context"
	"sync"

	"trafficase/pkg/platform/audit"
)

// Sink keeps published events in memory. Used in tests and when no broker is
// configured.
type Sink struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Sink {
	return &Sink{}
}

func (s *Sink) Publish(_ context.Context, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *Sink) Close() error { return nil }

// Events returns a copy of everything published so far.
func (s *Sink) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...)
}

// BySubject returns published events for one subject.
func (s *Sink) BySubject(subject string) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []audit.Event
	for _, e := range s.events {
		if e.Subject == subject {
			matched = append(matched, e)
		}
	}
	return matched
}

func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
