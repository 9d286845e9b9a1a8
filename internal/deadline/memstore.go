package deadline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/greenroomhq/greenroom/model"
)

// MemoryStore is an in-memory Store for testing and single-instance
// deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	deadlines map[string]model.Deadline // key: deadline ID
}

// NewMemoryStore creates a new in-memory deadline store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{deadlines: make(map[string]model.Deadline)}
}

// Create persists a new deadline.
func (s *MemoryStore) Create(_ context.Context, d model.Deadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deadlines[d.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("deadline %q already exists", d.ID))
	}
	s.deadlines[d.ID] = d
	return nil
}

// Get retrieves a deadline by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.deadlines[id]
	if !exists {
		return model.Deadline{}, model.NewNotFoundError(fmt.Sprintf("deadline %q not found", id))
	}
	return d, nil
}

// UpdateFrom persists a modified deadline if its stored status is from.
func (s *MemoryStore) UpdateFrom(_ context.Context, d model.Deadline, from string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.deadlines[d.ID]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("deadline %q not found", d.ID))
	}
	if current.Status != from {
		return model.NewConflictError(
			fmt.Sprintf("deadline %q is %s, concurrent update lost", d.ID, current.Status),
		).WithDetail("status", current.Status)
	}
	s.deadlines[d.ID] = d
	return nil
}

// ListByEpisode retrieves all deadlines for an episode, due soonest first.
func (s *MemoryStore) ListByEpisode(_ context.Context, episodeID string) ([]model.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(d model.Deadline) bool { return d.EpisodeID == episodeID }), nil
}

// ListByUser retrieves all deadlines assigned to a user, due soonest first.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]model.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(d model.Deadline) bool { return d.UserID == userID }), nil
}

// ListOpen retrieves every pending deadline, due soonest first.
func (s *MemoryStore) ListOpen(_ context.Context) ([]model.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(model.Deadline.Open), nil
}

// ListAll retrieves every deadline.
func (s *MemoryStore) ListAll(_ context.Context) ([]model.Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(model.Deadline) bool { return true }), nil
}

// collect returns matching deadlines sorted by due date. Caller holds the
// lock.
func (s *MemoryStore) collect(match func(model.Deadline) bool) []model.Deadline {
	var out []model.Deadline
	for _, d := range s.deadlines {
		if match(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
