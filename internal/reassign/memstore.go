package reassign

import (
	"context"
	"sort"
	"sync"

	"github.com/greenroomhq/greenroom/model"
)

// MemoryStore is an in-memory Store for testing and single-instance
// deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.ReassignmentRecord
}

// NewMemoryStore creates a new in-memory reassignment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds one audit record.
func (s *MemoryStore) Append(_ context.Context, rec model.ReassignmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	return nil
}

// ListByTask retrieves all records for one task, oldest first.
func (s *MemoryStore) ListByTask(_ context.Context, taskType model.TaskType, taskID string) ([]model.ReassignmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ReassignmentRecord
	for _, rec := range s.records {
		if rec.TaskType == taskType && rec.TaskID == taskID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
