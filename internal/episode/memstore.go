package episode

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
	mu       sync.RWMutex
	programs map[string]model.Program        // key: program ID
	episodes map[string]model.Episode        // key: episode ID
	crew     map[string]model.CrewAssignment // key: assignment ID
}

// NewMemoryStore creates a new in-memory episode store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		programs: make(map[string]model.Program),
		episodes: make(map[string]model.Episode),
		crew:     make(map[string]model.CrewAssignment),
	}
}

// CreateProgram persists a new program.
func (s *MemoryStore) CreateProgram(_ context.Context, p model.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.programs[p.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("program %q already exists", p.ID))
	}
	s.programs[p.ID] = p
	return nil
}

// GetProgram retrieves a program by ID.
func (s *MemoryStore) GetProgram(_ context.Context, id string) (model.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.programs[id]
	if !exists {
		return model.Program{}, model.NewNotFoundError(fmt.Sprintf("program %q not found", id))
	}
	return p, nil
}

// ListPrograms retrieves every program, ordered by name.
func (s *MemoryStore) ListPrograms(_ context.Context) ([]model.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Program, 0, len(s.programs))
	for _, p := range s.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateEpisode persists a new episode.
func (s *MemoryStore) CreateEpisode(_ context.Context, e model.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.episodes[e.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("episode %q already exists", e.ID))
	}
	s.episodes[e.ID] = e
	return nil
}

// GetEpisode retrieves an episode by ID.
func (s *MemoryStore) GetEpisode(_ context.Context, id string) (model.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.episodes[id]
	if !exists {
		return model.Episode{}, model.NewNotFoundError(fmt.Sprintf("episode %q not found", id))
	}
	return e, nil
}

// UpdateEpisode persists a modified episode.
func (s *MemoryStore) UpdateEpisode(_ context.Context, e model.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.episodes[e.ID]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("episode %q not found", e.ID))
	}
	e.UpdatedAt = time.Now().UTC()
	s.episodes[e.ID] = e
	return nil
}

// ListEpisodesByProgram retrieves a program's episodes, earliest air date
// first.
func (s *MemoryStore) ListEpisodesByProgram(_ context.Context, programID string) ([]model.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Episode
	for _, e := range s.episodes {
		if e.ProgramID == programID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AirDate.Equal(out[j].AirDate) {
			return out[i].AirDate.Before(out[j].AirDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteEpisode removes an episode and its crew assignments.
func (s *MemoryStore) DeleteEpisode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.episodes, id)
	for cid, c := range s.crew {
		if c.EpisodeID == id {
			delete(s.crew, cid)
		}
	}
	return nil
}

// AddCrew persists a crew assignment.
func (s *MemoryStore) AddCrew(_ context.Context, c model.CrewAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.crew {
		if existing.EpisodeID == c.EpisodeID && existing.UserID == c.UserID && existing.Role == c.Role {
			return model.NewConflictError(
				fmt.Sprintf("user %q already holds role %s on episode %q", c.UserID, c.Role, c.EpisodeID),
			)
		}
	}
	s.crew[c.ID] = c
	return nil
}

// ListCrew retrieves an episode's crew assignments, oldest first.
func (s *MemoryStore) ListCrew(_ context.Context, episodeID string) ([]model.CrewAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CrewAssignment
	for _, c := range s.crew {
		if c.EpisodeID == episodeID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RemoveCrew deletes one crew assignment by ID.
func (s *MemoryStore) RemoveCrew(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.crew[id]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("crew assignment %q not found", id))
	}
	delete(s.crew, id)
	return nil
}
