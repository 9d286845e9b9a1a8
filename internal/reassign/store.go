package reassign

import (
	"context"

	"github.com/greenroomhq/greenroom/model"
)

// Store persists the append-only reassignment audit trail. Records are never
// mutated or deleted.
type Store interface {
	// Append adds one audit record.
	Append(ctx context.Context, rec model.ReassignmentRecord) error

	// ListByTask retrieves all records for one task, oldest first.
	ListByTask(ctx context.Context, taskType model.TaskType, taskID string) ([]model.ReassignmentRecord, error)
}
