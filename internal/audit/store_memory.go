package audit

import (
	"context"
	"sync"

	id "hope/pkg/domain"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.TicketID][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.TicketID][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.TicketID] = append(s.events[event.TicketID], event)
	return nil
}

func (s *InMemoryStore) ListByTicket(_ context.Context, ticketID id.TicketID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[ticketID]...), nil
}
