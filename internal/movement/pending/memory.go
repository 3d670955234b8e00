package pending

import (
	"context"
	"sync"
	"time"

	"inventory-assistant/internal/movement"
)

// MemoryStore is the in-process store used in tests and single-instance
// deployments without Redis.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]movement.Continuation
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]movement.Continuation),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, c *movement.Continuation) error {
	cp := *c
	cp.RemainingIntents = append([]movement.Intent(nil), c.RemainingIntents...)
	cp.Pending.Candidates = append([]movement.Candidate(nil), c.Pending.Candidates...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[c.ConversationID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, conversationID string) (*movement.Continuation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[conversationID]
	if !ok {
		return nil, false, nil
	}
	if c.Expired(s.now(), s.ttl) {
		delete(s.items, conversationID)
		return nil, false, nil
	}
	return &c, true, nil
}

func (s *MemoryStore) Clear(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, conversationID)
	return nil
}

// Len is the number of stored continuations, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
