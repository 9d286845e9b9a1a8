package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/greenroomhq/greenroom/model"
)

// MemoryStore is an in-memory Store for testing and single-instance
// deployments. Claims run under the store mutex, which is the critical
// section that keeps concurrent approvals from double-claiming an item.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]model.InventoryItem    // key: item ID
	requests map[string]model.EquipmentRequest // key: request ID
}

// NewMemoryStore creates a new in-memory inventory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]model.InventoryItem),
		requests: make(map[string]model.EquipmentRequest),
	}
}

// CreateItem persists a new inventory item.
func (s *MemoryStore) CreateItem(_ context.Context, item model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("inventory item %q already exists", item.ID))
	}
	s.items[item.ID] = item
	return nil
}

// GetItem retrieves an item by ID.
func (s *MemoryStore) GetItem(_ context.Context, id string) (model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return model.InventoryItem{}, model.NewNotFoundError(fmt.Sprintf("inventory item %q not found", id))
	}
	return item, nil
}

// UpdateItem persists a modified item with optimistic locking.
func (s *MemoryStore) UpdateItem(_ context.Context, item model.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[item.ID]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("inventory item %q not found", item.ID))
	}
	if existing.Version != item.Version {
		return model.NewConflictError(
			fmt.Sprintf("inventory item %q version conflict (expected %d, got %d)",
				item.ID, item.Version, existing.Version),
		)
	}

	item.Version++
	item.UpdatedAt = time.Now().UTC()
	s.items[item.ID] = item
	return nil
}

// ListItems retrieves every item, ordered by name then ID.
func (s *MemoryStore) ListItems(_ context.Context) ([]model.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ClaimAvailableByNames atomically claims one available item per name.
func (s *MemoryStore) ClaimAvailableByNames(_ context.Context, names []string) ([]model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Match first without mutating so an unsatisfiable name leaves every
	// item untouched. Duplicate names must claim distinct items.
	taken := make(map[string]bool, len(names))
	claimed := make([]model.InventoryItem, 0, len(names))
	for _, name := range names {
		found := false
		for _, id := range s.itemIDsByName(name) {
			item := s.items[id]
			if item.Status == model.ItemAvailable && !taken[id] {
				taken[id] = true
				claimed = append(claimed, item)
				found = true
				break
			}
		}
		if !found {
			return nil, model.NewResourceUnavailableError(name)
		}
	}

	now := time.Now().UTC()
	for i, item := range claimed {
		item.Status = model.ItemInUse
		item.Version++
		item.UpdatedAt = now
		s.items[item.ID] = item
		claimed[i] = item
	}
	return claimed, nil
}

// ReleaseItems sets the status of the given items.
func (s *MemoryStore) ReleaseItems(_ context.Context, itemIDs []string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range itemIDs {
		item, exists := s.items[id]
		if !exists {
			return model.NewNotFoundError(fmt.Sprintf("inventory item %q not found", id))
		}
		item.Status = status
		item.Version++
		item.UpdatedAt = now
		s.items[id] = item
	}
	return nil
}

// CreateRequest persists a new equipment request.
func (s *MemoryStore) CreateRequest(_ context.Context, req model.EquipmentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("equipment request %q already exists", req.ID))
	}
	s.requests[req.ID] = req
	return nil
}

// GetRequest retrieves a request by ID.
func (s *MemoryStore) GetRequest(_ context.Context, id string) (model.EquipmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, exists := s.requests[id]
	if !exists {
		return model.EquipmentRequest{}, model.NewNotFoundError(fmt.Sprintf("equipment request %q not found", id))
	}
	return req, nil
}

// UpdateRequestFrom persists a modified request if its stored status is one
// of from.
func (s *MemoryStore) UpdateRequestFrom(_ context.Context, req model.EquipmentRequest, from ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.requests[req.ID]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("equipment request %q not found", req.ID))
	}
	if !statusIn(current.Status, from) {
		return model.NewConflictError(
			fmt.Sprintf("equipment request %q is %s, concurrent update lost", req.ID, current.Status),
		).WithDetail("status", current.Status)
	}
	req.UpdatedAt = time.Now().UTC()
	s.requests[req.ID] = req
	return nil
}

func statusIn(status string, allowed []string) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

// ListRequestsByEpisode retrieves all requests for an episode, oldest first.
func (s *MemoryStore) ListRequestsByEpisode(_ context.Context, episodeID string) ([]model.EquipmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.EquipmentRequest
	for _, req := range s.requests {
		if req.EpisodeID == episodeID {
			out = append(out, req)
		}
	}
	sortRequests(out)
	return out, nil
}

// ListRequests retrieves every request.
func (s *MemoryStore) ListRequests(_ context.Context) ([]model.EquipmentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.EquipmentRequest, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req)
	}
	sortRequests(out)
	return out, nil
}

// DeleteRequestsByEpisode removes all requests for an episode.
func (s *MemoryStore) DeleteRequestsByEpisode(_ context.Context, episodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, req := range s.requests {
		if req.EpisodeID == episodeID {
			delete(s.requests, id)
		}
	}
	return nil
}

// itemIDsByName returns item IDs matching a name in deterministic order.
// Caller holds the lock.
func (s *MemoryStore) itemIDsByName(name string) []string {
	var ids []string
	for id, item := range s.items {
		if item.Name == name {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func sortRequests(reqs []model.EquipmentRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}
