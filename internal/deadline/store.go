package deadline

import (
	"context"

	"github.com/greenroomhq/greenroom/model"
)

// Store persists deadlines. Deadlines are soft-terminal: completion and
// cancellation update rows, nothing ever deletes them. Even the episode
// delete cascade only cancels.
type Store interface {
	// Create persists a new deadline.
	Create(ctx context.Context, d model.Deadline) error

	// Get retrieves a deadline by ID. Returns NOT_FOUND if absent.
	Get(ctx context.Context, id string) (model.Deadline, error)

	// UpdateFrom persists a modified deadline only while its stored status
	// is from. Returns CONFLICT if a concurrent mutation got there first,
	// NOT_FOUND if the deadline is absent. Every deadline mutation runs
	// through this guard so two racing writers cannot both win.
	UpdateFrom(ctx context.Context, d model.Deadline, from string) error

	// ListByEpisode retrieves all deadlines for an episode, due soonest
	// first.
	ListByEpisode(ctx context.Context, episodeID string) ([]model.Deadline, error)

	// ListByUser retrieves all deadlines assigned to a user, due soonest
	// first.
	ListByUser(ctx context.Context, userID string) ([]model.Deadline, error)

	// ListOpen retrieves every pending deadline across all episodes, due
	// soonest first. Feeds the overdue and reminder sweeps.
	ListOpen(ctx context.Context) ([]model.Deadline, error)

	// ListAll retrieves every deadline across all episodes. Feeds global
	// statistics.
	ListAll(ctx context.Context) ([]model.Deadline, error)
}
