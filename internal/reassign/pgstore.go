package reassign

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenroomhq/greenroom/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL reassignment store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Append adds one audit record.
func (s *PgStore) Append(ctx context.Context, rec model.ReassignmentRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reassignment_records (id, task_type, task_id, old_assignee, new_assignee, actor, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.TaskType, rec.TaskID, rec.OldAssignee, rec.NewAssignee,
		rec.Actor, rec.Reason, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert reassignment record: %w", err)
	}
	return nil
}

// ListByTask retrieves all records for one task, oldest first.
func (s *PgStore) ListByTask(ctx context.Context, taskType model.TaskType, taskID string) ([]model.ReassignmentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_type, task_id, old_assignee, new_assignee, actor, reason, created_at
		FROM reassignment_records
		WHERE task_type = $1 AND task_id = $2
		ORDER BY created_at ASC`,
		taskType, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query reassignment records: %w", err)
	}
	defer rows.Close()

	var out []model.ReassignmentRecord
	for rows.Next() {
		var rec model.ReassignmentRecord
		if err := rows.Scan(
			&rec.ID, &rec.TaskType, &rec.TaskID, &rec.OldAssignee, &rec.NewAssignee,
			&rec.Actor, &rec.Reason, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan reassignment record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
