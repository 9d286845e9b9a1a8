package episode

import (
	"context"

	"github.com/greenroomhq/greenroom/model"
)

// Store persists programs, episodes, and crew assignments.
type Store interface {
	// CreateProgram persists a new program.
	CreateProgram(ctx context.Context, p model.Program) error

	// GetProgram retrieves a program by ID. Returns NOT_FOUND if absent.
	GetProgram(ctx context.Context, id string) (model.Program, error)

	// ListPrograms retrieves every program, ordered by name.
	ListPrograms(ctx context.Context) ([]model.Program, error)

	// CreateEpisode persists a new episode.
	CreateEpisode(ctx context.Context, e model.Episode) error

	// GetEpisode retrieves an episode by ID. Returns NOT_FOUND if absent.
	GetEpisode(ctx context.Context, id string) (model.Episode, error)

	// UpdateEpisode persists a modified episode.
	UpdateEpisode(ctx context.Context, e model.Episode) error

	// ListEpisodesByProgram retrieves a program's episodes, earliest air
	// date first.
	ListEpisodesByProgram(ctx context.Context, programID string) ([]model.Episode, error)

	// DeleteEpisode removes an episode and its crew assignments.
	DeleteEpisode(ctx context.Context, id string) error

	// AddCrew persists a crew assignment. Returns CONFLICT if the episode
	// already carries the same (user, role) pair.
	AddCrew(ctx context.Context, c model.CrewAssignment) error

	// ListCrew retrieves an episode's crew assignments, oldest first.
	ListCrew(ctx context.Context, episodeID string) ([]model.CrewAssignment, error)

	// RemoveCrew deletes one crew assignment by ID.
	RemoveCrew(ctx context.Context, id string) error
}
