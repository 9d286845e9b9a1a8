package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenroomhq/greenroom/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL workflow store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// CreateState inserts a new workflow state row.
func (s *PgStore) CreateState(ctx context.Context, state model.WorkflowState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_states (id, episode_id, current_state, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		state.ID, state.EpisodeID, state.CurrentState, state.Version,
		state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow state: %w", err)
	}
	return nil
}

// GetState retrieves the workflow state for an episode.
func (s *PgStore) GetState(ctx context.Context, episodeID string) (model.WorkflowState, error) {
	var state model.WorkflowState
	err := s.pool.QueryRow(ctx, `
		SELECT id, episode_id, current_state, version, created_at, updated_at
		FROM workflow_states
		WHERE episode_id = $1`,
		episodeID,
	).Scan(
		&state.ID, &state.EpisodeID, &state.CurrentState, &state.Version,
		&state.CreatedAt, &state.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.WorkflowState{}, model.NewNotFoundError(
			fmt.Sprintf("workflow state for episode %q not found", episodeID),
		)
	}
	if err != nil {
		return model.WorkflowState{}, fmt.Errorf("query workflow state: %w", err)
	}
	return state, nil
}

// UpdateState persists an updated state with optimistic locking.
func (s *PgStore) UpdateState(ctx context.Context, state model.WorkflowState) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE workflow_states SET
			current_state = $1,
			version = $2,
			updated_at = $3
		WHERE episode_id = $4 AND version = $5`,
		state.CurrentState, state.Version+1, time.Now().UTC(),
		state.EpisodeID, state.Version,
	)
	if err != nil {
		return fmt.Errorf("update workflow state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("workflow state for episode %q version conflict (expected %d)", state.EpisodeID, state.Version),
		)
	}
	return nil
}

// AppendTransition adds a record to the episode's workflow history.
func (s *PgStore) AppendTransition(ctx context.Context, rec model.TransitionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_transitions (id, episode_id, from_state, to_state, role, actor, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.EpisodeID, rec.From, rec.To, rec.Role, rec.Actor, rec.Notes, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert workflow transition: %w", err)
	}
	return nil
}

// GetTransitions retrieves an episode's history, oldest first.
func (s *PgStore) GetTransitions(ctx context.Context, episodeID string) ([]model.TransitionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, episode_id, from_state, to_state, role, actor, notes, created_at
		FROM workflow_transitions
		WHERE episode_id = $1
		ORDER BY created_at ASC`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query workflow transitions: %w", err)
	}
	defer rows.Close()

	var records []model.TransitionRecord
	for rows.Next() {
		var rec model.TransitionRecord
		if err := rows.Scan(
			&rec.ID, &rec.EpisodeID, &rec.From, &rec.To, &rec.Role, &rec.Actor,
			&rec.Notes, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan workflow transition: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CreateSteps inserts the initial step progress rows for an episode.
func (s *PgStore) CreateSteps(ctx context.Context, steps []model.StepProgress) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range steps {
		_, err := tx.Exec(ctx, `
			INSERT INTO step_progress (id, episode_id, step, status, assigned_user, notes, started_at, completed_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.EpisodeID, p.Step, p.Status, p.AssignedUser, p.Notes,
			p.StartedAt, p.CompletedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert step progress %d: %w", p.Step, err)
		}
	}
	return tx.Commit(ctx)
}

// GetStep retrieves one step progress row.
func (s *PgStore) GetStep(ctx context.Context, episodeID string, step int) (model.StepProgress, error) {
	var p model.StepProgress
	err := s.pool.QueryRow(ctx, `
		SELECT id, episode_id, step, status, assigned_user, notes, started_at, completed_at, updated_at
		FROM step_progress
		WHERE episode_id = $1 AND step = $2`,
		episodeID, step,
	).Scan(
		&p.ID, &p.EpisodeID, &p.Step, &p.Status, &p.AssignedUser, &p.Notes,
		&p.StartedAt, &p.CompletedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.StepProgress{}, model.NewNotFoundError(
			fmt.Sprintf("step %d for episode %q not found", step, episodeID),
		)
	}
	if err != nil {
		return model.StepProgress{}, fmt.Errorf("query step progress: %w", err)
	}
	return p, nil
}

// GetStepByID retrieves one step progress row by its row ID.
func (s *PgStore) GetStepByID(ctx context.Context, id string) (model.StepProgress, error) {
	var p model.StepProgress
	err := s.pool.QueryRow(ctx, `
		SELECT id, episode_id, step, status, assigned_user, notes, started_at, completed_at, updated_at
		FROM step_progress
		WHERE id = $1`,
		id,
	).Scan(
		&p.ID, &p.EpisodeID, &p.Step, &p.Status, &p.AssignedUser, &p.Notes,
		&p.StartedAt, &p.CompletedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.StepProgress{}, model.NewNotFoundError(
			fmt.Sprintf("step progress %q not found", id),
		)
	}
	if err != nil {
		return model.StepProgress{}, fmt.Errorf("query step progress: %w", err)
	}
	return p, nil
}

// UpdateStep persists an updated step progress row.
func (s *PgStore) UpdateStep(ctx context.Context, p model.StepProgress) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE step_progress SET
			status = $1,
			assigned_user = $2,
			notes = $3,
			started_at = $4,
			completed_at = $5,
			updated_at = $6
		WHERE episode_id = $7 AND step = $8`,
		p.Status, p.AssignedUser, p.Notes, p.StartedAt, p.CompletedAt,
		time.Now().UTC(), p.EpisodeID, p.Step,
	)
	if err != nil {
		return fmt.Errorf("update step progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(
			fmt.Sprintf("step %d for episode %q not found", p.Step, p.EpisodeID),
		)
	}
	return nil
}

// ListSteps retrieves all step progress rows for an episode.
func (s *PgStore) ListSteps(ctx context.Context, episodeID string) ([]model.StepProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, episode_id, step, status, assigned_user, notes, started_at, completed_at, updated_at
		FROM step_progress
		WHERE episode_id = $1
		ORDER BY step ASC`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query step progress: %w", err)
	}
	defer rows.Close()

	var result []model.StepProgress
	for rows.Next() {
		var p model.StepProgress
		if err := rows.Scan(
			&p.ID, &p.EpisodeID, &p.Step, &p.Status, &p.AssignedUser, &p.Notes,
			&p.StartedAt, &p.CompletedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan step progress: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// DeleteEpisode removes the workflow state, history, and step rows for an
// episode.
func (s *PgStore) DeleteEpisode(ctx context.Context, episodeID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM workflow_transitions WHERE episode_id = $1`,
		`DELETE FROM step_progress WHERE episode_id = $1`,
		`DELETE FROM workflow_states WHERE episode_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, episodeID); err != nil {
			return fmt.Errorf("delete workflow rows: %w", err)
		}
	}
	return tx.Commit(ctx)
}
