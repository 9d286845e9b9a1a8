package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/greenroomhq/greenroom/model"
)

// MemoryStore is an in-memory Store for testing and single-instance
// deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	states      map[string]model.WorkflowState      // key: episode ID
	transitions map[string][]model.TransitionRecord // key: episode ID
	steps       map[string][]model.StepProgress     // key: episode ID, ordered by step
}

// NewMemoryStore creates a new in-memory workflow store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:      make(map[string]model.WorkflowState),
		transitions: make(map[string][]model.TransitionRecord),
		steps:       make(map[string][]model.StepProgress),
	}
}

// CreateState persists a new workflow state row.
func (s *MemoryStore) CreateState(_ context.Context, state model.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.states[state.EpisodeID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("episode %q already has a workflow state", state.EpisodeID),
		)
	}
	s.states[state.EpisodeID] = state
	return nil
}

// GetState retrieves the workflow state for an episode.
func (s *MemoryStore) GetState(_ context.Context, episodeID string) (model.WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[episodeID]
	if !exists {
		return model.WorkflowState{}, model.NewNotFoundError(
			fmt.Sprintf("workflow state for episode %q not found", episodeID),
		)
	}
	return state, nil
}

// UpdateState persists an updated state with optimistic locking.
func (s *MemoryStore) UpdateState(_ context.Context, state model.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.states[state.EpisodeID]
	if !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("workflow state for episode %q not found", state.EpisodeID),
		)
	}
	if existing.Version != state.Version {
		return model.NewConflictError(
			fmt.Sprintf("workflow state for episode %q version conflict (expected %d, got %d)",
				state.EpisodeID, state.Version, existing.Version),
		)
	}

	state.Version++
	state.UpdatedAt = time.Now().UTC()
	s.states[state.EpisodeID] = state
	return nil
}

// AppendTransition adds a record to the episode's workflow history.
func (s *MemoryStore) AppendTransition(_ context.Context, rec model.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transitions[rec.EpisodeID] = append(s.transitions[rec.EpisodeID], rec)
	return nil
}

// GetTransitions retrieves an episode's history, oldest first.
func (s *MemoryStore) GetTransitions(_ context.Context, episodeID string) ([]model.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.transitions[episodeID]
	result := make([]model.TransitionRecord, len(records))
	copy(result, records)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// CreateSteps persists the initial step progress rows for an episode.
func (s *MemoryStore) CreateSteps(_ context.Context, steps []model.StepProgress) error {
	if len(steps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	episodeID := steps[0].EpisodeID
	if len(s.steps[episodeID]) > 0 {
		return model.NewConflictError(
			fmt.Sprintf("episode %q already has step progress rows", episodeID),
		)
	}

	rows := make([]model.StepProgress, len(steps))
	copy(rows, steps)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Step < rows[j].Step })
	s.steps[episodeID] = rows
	return nil
}

// GetStep retrieves one step progress row.
func (s *MemoryStore) GetStep(_ context.Context, episodeID string, step int) (model.StepProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.steps[episodeID] {
		if p.Step == step {
			return p, nil
		}
	}
	return model.StepProgress{}, model.NewNotFoundError(
		fmt.Sprintf("step %d for episode %q not found", step, episodeID),
	)
}

// GetStepByID retrieves one step progress row by its row ID.
func (s *MemoryStore) GetStepByID(_ context.Context, id string) (model.StepProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rows := range s.steps {
		for _, p := range rows {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return model.StepProgress{}, model.NewNotFoundError(
		fmt.Sprintf("step progress %q not found", id),
	)
}

// UpdateStep persists an updated step progress row.
func (s *MemoryStore) UpdateStep(_ context.Context, progress model.StepProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.steps[progress.EpisodeID]
	for i, p := range rows {
		if p.Step == progress.Step {
			progress.UpdatedAt = time.Now().UTC()
			rows[i] = progress
			return nil
		}
	}
	return model.NewNotFoundError(
		fmt.Sprintf("step %d for episode %q not found", progress.Step, progress.EpisodeID),
	)
}

// ListSteps retrieves all step progress rows for an episode.
func (s *MemoryStore) ListSteps(_ context.Context, episodeID string) ([]model.StepProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.steps[episodeID]
	result := make([]model.StepProgress, len(rows))
	copy(result, rows)
	return result, nil
}

// DeleteEpisode removes all workflow rows for an episode.
func (s *MemoryStore) DeleteEpisode(_ context.Context, episodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, episodeID)
	delete(s.transitions, episodeID)
	delete(s.steps, episodeID)
	return nil
}
