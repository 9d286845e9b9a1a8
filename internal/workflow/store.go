package workflow

import (
	"context"

	"github.com/greenroomhq/greenroom/model"
)

// Store persists workflow state, transition history, and step progress.
type Store interface {
	// CreateState persists a new workflow state row. Returns CONFLICT if
	// the episode already has one.
	CreateState(ctx context.Context, state model.WorkflowState) error

	// GetState retrieves the workflow state for an episode. Returns
	// NOT_FOUND if the episode has none.
	GetState(ctx context.Context, episodeID string) (model.WorkflowState, error)

	// UpdateState persists an updated state with optimistic locking. The
	// version must match the stored version; returns CONFLICT otherwise.
	UpdateState(ctx context.Context, state model.WorkflowState) error

	// AppendTransition adds a record to the episode's workflow history.
	AppendTransition(ctx context.Context, rec model.TransitionRecord) error

	// GetTransitions retrieves an episode's history, oldest first.
	GetTransitions(ctx context.Context, episodeID string) ([]model.TransitionRecord, error)

	// CreateSteps persists the initial step progress rows for an episode.
	CreateSteps(ctx context.Context, steps []model.StepProgress) error

	// GetStep retrieves one step progress row. Returns NOT_FOUND if the
	// episode has no row for the step number.
	GetStep(ctx context.Context, episodeID string, step int) (model.StepProgress, error)

	// GetStepByID retrieves one step progress row by its row ID. Used by
	// the reassignment path, which addresses tasks by ID.
	GetStepByID(ctx context.Context, id string) (model.StepProgress, error)

	// UpdateStep persists an updated step progress row.
	UpdateStep(ctx context.Context, progress model.StepProgress) error

	// ListSteps retrieves all step progress rows for an episode, ordered
	// by step number.
	ListSteps(ctx context.Context, episodeID string) ([]model.StepProgress, error)

	// DeleteEpisode removes the workflow state, history, and step rows for
	// an episode. Used only by the episode delete cascade.
	DeleteEpisode(ctx context.Context, episodeID string) error
}
