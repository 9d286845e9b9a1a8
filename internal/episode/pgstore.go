package episode

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

// NewPgStore creates a new PostgreSQL episode store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// CreateProgram inserts a new program row.
func (s *PgStore) CreateProgram(ctx context.Context, p model.Program) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO programs (id, name, created_at)
		VALUES ($1, $2, $3)`,
		p.ID, p.Name, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert program: %w", err)
	}
	return nil
}

// GetProgram retrieves a program by ID.
func (s *PgStore) GetProgram(ctx context.Context, id string) (model.Program, error) {
	var p model.Program
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at FROM programs WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return model.Program{}, model.NewNotFoundError(fmt.Sprintf("program %q not found", id))
	}
	if err != nil {
		return model.Program{}, fmt.Errorf("query program: %w", err)
	}
	return p, nil
}

// ListPrograms retrieves every program, ordered by name.
func (s *PgStore) ListPrograms(ctx context.Context) ([]model.Program, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_at FROM programs ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	var out []model.Program
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const episodeColumns = `id, program_id, title, air_date, created_by, created_at, updated_at`

// CreateEpisode inserts a new episode row.
func (s *PgStore) CreateEpisode(ctx context.Context, e model.Episode) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO episodes (`+episodeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ProgramID, e.Title, e.AirDate, e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// GetEpisode retrieves an episode by ID.
func (s *PgStore) GetEpisode(ctx context.Context, id string) (model.Episode, error) {
	var e model.Episode
	err := s.pool.QueryRow(ctx, `
		SELECT `+episodeColumns+` FROM episodes WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.ProgramID, &e.Title, &e.AirDate, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err == pgx.ErrNoRows {
		return model.Episode{}, model.NewNotFoundError(fmt.Sprintf("episode %q not found", id))
	}
	if err != nil {
		return model.Episode{}, fmt.Errorf("query episode: %w", err)
	}
	return e, nil
}

// UpdateEpisode persists a modified episode row.
func (s *PgStore) UpdateEpisode(ctx context.Context, e model.Episode) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE episodes SET
			title = $1,
			air_date = $2,
			updated_at = $3
		WHERE id = $4`,
		e.Title, e.AirDate, time.Now().UTC(), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("episode %q not found", e.ID))
	}
	return nil
}

// ListEpisodesByProgram retrieves a program's episodes, earliest air date
// first.
func (s *PgStore) ListEpisodesByProgram(ctx context.Context, programID string) ([]model.Episode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+episodeColumns+`
		FROM episodes
		WHERE program_id = $1
		ORDER BY air_date ASC, id ASC`,
		programID,
	)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []model.Episode
	for rows.Next() {
		var e model.Episode
		if err := rows.Scan(&e.ID, &e.ProgramID, &e.Title, &e.AirDate, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEpisode removes an episode and its crew assignments.
func (s *PgStore) DeleteEpisode(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM crew_assignments WHERE episode_id = $1`, id); err != nil {
		return fmt.Errorf("delete crew assignments: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM episodes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	return tx.Commit(ctx)
}

// AddCrew inserts a crew assignment row.
func (s *PgStore) AddCrew(ctx context.Context, c model.CrewAssignment) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO crew_assignments (id, episode_id, user_id, role, assigned_by, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM crew_assignments
			WHERE episode_id = $2 AND user_id = $3 AND role = $4
		)`,
		c.ID, c.EpisodeID, c.UserID, c.Role, c.AssignedBy, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert crew assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("user %q already holds role %s on episode %q", c.UserID, c.Role, c.EpisodeID),
		)
	}
	return nil
}

// ListCrew retrieves an episode's crew assignments, oldest first.
func (s *PgStore) ListCrew(ctx context.Context, episodeID string) ([]model.CrewAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, episode_id, user_id, role, assigned_by, created_at
		FROM crew_assignments
		WHERE episode_id = $1
		ORDER BY created_at ASC, id ASC`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query crew assignments: %w", err)
	}
	defer rows.Close()

	var out []model.CrewAssignment
	for rows.Next() {
		var c model.CrewAssignment
		if err := rows.Scan(&c.ID, &c.EpisodeID, &c.UserID, &c.Role, &c.AssignedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan crew assignment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RemoveCrew deletes one crew assignment by ID.
func (s *PgStore) RemoveCrew(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM crew_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete crew assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("crew assignment %q not found", id))
	}
	return nil
}
