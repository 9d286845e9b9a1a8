package deadline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenroomhq/greenroom/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL deadline store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const deadlineColumns = `id, episode_id, role, user_id, description, due_at,
	status, is_completed, completed_by, completed_at, notes, created_at`

// Create inserts a new deadline row.
func (s *PgStore) Create(ctx context.Context, d model.Deadline) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deadlines (`+deadlineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.EpisodeID, d.Role, d.UserID, d.Description, d.DueAt,
		d.Status, d.IsCompleted, d.CompletedBy, d.CompletedAt, d.Notes, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deadline: %w", err)
	}
	return nil
}

// Get retrieves a deadline by ID.
func (s *PgStore) Get(ctx context.Context, id string) (model.Deadline, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+deadlineColumns+`
		FROM deadlines
		WHERE id = $1`,
		id,
	)
	d, err := scanDeadline(row)
	if err == pgx.ErrNoRows {
		return model.Deadline{}, model.NewNotFoundError(fmt.Sprintf("deadline %q not found", id))
	}
	if err != nil {
		return model.Deadline{}, fmt.Errorf("query deadline: %w", err)
	}
	return d, nil
}

// UpdateFrom persists a modified deadline row if its stored status is from.
func (s *PgStore) UpdateFrom(ctx context.Context, d model.Deadline, from string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE deadlines SET
			user_id = $1,
			description = $2,
			due_at = $3,
			status = $4,
			is_completed = $5,
			completed_by = $6,
			completed_at = $7,
			notes = $8
		WHERE id = $9 AND status = $10`,
		d.UserID, d.Description, d.DueAt, d.Status, d.IsCompleted,
		d.CompletedBy, d.CompletedAt, d.Notes, d.ID, from,
	)
	if err != nil {
		return fmt.Errorf("update deadline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, err := s.Get(ctx, d.ID)
		if err != nil {
			return err
		}
		return model.NewConflictError(
			fmt.Sprintf("deadline %q is %s, concurrent update lost", d.ID, current.Status),
		).WithDetail("status", current.Status)
	}
	return nil
}

// ListByEpisode retrieves all deadlines for an episode, due soonest first.
func (s *PgStore) ListByEpisode(ctx context.Context, episodeID string) ([]model.Deadline, error) {
	return s.list(ctx, `WHERE episode_id = $1`, episodeID)
}

// ListByUser retrieves all deadlines assigned to a user, due soonest first.
func (s *PgStore) ListByUser(ctx context.Context, userID string) ([]model.Deadline, error) {
	return s.list(ctx, `WHERE user_id = $1`, userID)
}

// ListOpen retrieves every pending deadline, due soonest first.
func (s *PgStore) ListOpen(ctx context.Context) ([]model.Deadline, error) {
	return s.list(ctx, `WHERE is_completed = FALSE AND status <> 'cancelled'`)
}

// ListAll retrieves every deadline.
func (s *PgStore) ListAll(ctx context.Context) ([]model.Deadline, error) {
	return s.list(ctx, ``)
}

func (s *PgStore) list(ctx context.Context, where string, args ...any) ([]model.Deadline, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+deadlineColumns+`
		FROM deadlines
		`+where+`
		ORDER BY due_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query deadlines: %w", err)
	}
	defer rows.Close()

	var out []model.Deadline
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deadline: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDeadline(row pgx.Row) (model.Deadline, error) {
	var d model.Deadline
	err := row.Scan(
		&d.ID, &d.EpisodeID, &d.Role, &d.UserID, &d.Description, &d.DueAt,
		&d.Status, &d.IsCompleted, &d.CompletedBy, &d.CompletedAt, &d.Notes, &d.CreatedAt,
	)
	return d, err
}
