package memory

import (
	"context"
	"sync"
)

// DeliveredStore is an in-memory pipeline.DeliveredStore tracking per-user
// last-delivered identity sets.
type DeliveredStore struct {
	mu        sync.RWMutex
	delivered map[string]map[string]bool
}

// NewDeliveredStore constructs a DeliveredStore.
func NewDeliveredStore() *DeliveredStore {
	return &DeliveredStore{delivered: make(map[string]map[string]bool)}
}

// Delivered returns the identity set previously delivered to the user.
func (s *DeliveredStore) Delivered(_ context.Context, userID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.delivered[userID]
	out := make(map[string]bool, len(set))
	for id := range set {
		out[id] = true
	}
	return out, nil
}

// MarkDelivered records identities as delivered to the user.
func (s *DeliveredStore) MarkDelivered(_ context.Context, userID string, identities []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.delivered[userID]
	if set == nil {
		set = make(map[string]bool)
		s.delivered[userID] = set
	}
	for _, id := range identities {
		set[id] = true
	}
	return nil
}
