package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenroomhq/greenroom/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5. Claims run inside a
// transaction with row locks, so concurrent approvals naming the same item
// serialize on the database.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL inventory store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const itemColumns = `id, name, category, status, version, created_at, updated_at`

// CreateItem inserts a new inventory item row.
func (s *PgStore) CreateItem(ctx context.Context, item model.InventoryItem) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inventory_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.Name, item.Category, item.Status, item.Version,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (s *PgStore) GetItem(ctx context.Context, id string) (model.InventoryItem, error) {
	var item model.InventoryItem
	err := s.pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM inventory_items
		WHERE id = $1`,
		id,
	).Scan(
		&item.ID, &item.Name, &item.Category, &item.Status, &item.Version,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.InventoryItem{}, model.NewNotFoundError(fmt.Sprintf("inventory item %q not found", id))
	}
	if err != nil {
		return model.InventoryItem{}, fmt.Errorf("query inventory item: %w", err)
	}
	return item, nil
}

// UpdateItem persists a modified item with optimistic locking.
func (s *PgStore) UpdateItem(ctx context.Context, item model.InventoryItem) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE inventory_items SET
			name = $1,
			category = $2,
			status = $3,
			version = $4,
			updated_at = $5
		WHERE id = $6 AND version = $7`,
		item.Name, item.Category, item.Status, item.Version+1,
		time.Now().UTC(), item.ID, item.Version,
	)
	if err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("inventory item %q version conflict (expected %d)", item.ID, item.Version),
		)
	}
	return nil
}

// ListItems retrieves every item, ordered by name then ID.
func (s *PgStore) ListItems(ctx context.Context) ([]model.InventoryItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM inventory_items
		ORDER BY name ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query inventory items: %w", err)
	}
	defer rows.Close()

	var out []model.InventoryItem
	for rows.Next() {
		var item model.InventoryItem
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Category, &item.Status, &item.Version,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ClaimAvailableByNames atomically claims one available item per name inside
// a single transaction. SKIP LOCKED keeps two racing approvals from blocking
// on (or both taking) the same row; the first unsatisfiable name rolls the
// whole claim back.
func (s *PgStore) ClaimAvailableByNames(ctx context.Context, names []string) ([]model.InventoryItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	claimed := make([]model.InventoryItem, 0, len(names))
	for _, name := range names {
		var item model.InventoryItem
		err := tx.QueryRow(ctx, `
			UPDATE inventory_items SET
				status = $1,
				version = version + 1,
				updated_at = $2
			WHERE id = (
				SELECT id FROM inventory_items
				WHERE name = $3 AND status = $4
				ORDER BY id
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING `+itemColumns,
			model.ItemInUse, now, name, model.ItemAvailable,
		).Scan(
			&item.ID, &item.Name, &item.Category, &item.Status, &item.Version,
			&item.CreatedAt, &item.UpdatedAt,
		)
		if err == pgx.ErrNoRows {
			return nil, model.NewResourceUnavailableError(name)
		}
		if err != nil {
			return nil, fmt.Errorf("claim item %q: %w", name, err)
		}
		claimed = append(claimed, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return claimed, nil
}

// ReleaseItems sets the status of the given items.
func (s *PgStore) ReleaseItems(ctx context.Context, itemIDs []string, status string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE inventory_items SET
			status = $1,
			version = version + 1,
			updated_at = $2
		WHERE id = ANY($3)`,
		status, time.Now().UTC(), itemIDs,
	)
	if err != nil {
		return fmt.Errorf("release items: %w", err)
	}
	return nil
}

const requestColumns = `id, episode_id, requested_by, items, status, return_due,
	approved_by, approved_at, rejection_reason, return_condition, return_notes,
	returned_at, claimed_item_ids, created_at, updated_at`

// CreateRequest inserts a new equipment request row.
func (s *PgStore) CreateRequest(ctx context.Context, req model.EquipmentRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO equipment_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		req.ID, req.EpisodeID, req.RequestedBy, req.Items, req.Status, req.ReturnDue,
		req.ApprovedBy, req.ApprovedAt, req.RejectionReason, req.ReturnCondition,
		req.ReturnNotes, req.ReturnedAt, req.ClaimedItemIDs, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert equipment request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by ID.
func (s *PgStore) GetRequest(ctx context.Context, id string) (model.EquipmentRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM equipment_requests
		WHERE id = $1`,
		id,
	)
	req, err := scanRequest(row)
	if err == pgx.ErrNoRows {
		return model.EquipmentRequest{}, model.NewNotFoundError(fmt.Sprintf("equipment request %q not found", id))
	}
	if err != nil {
		return model.EquipmentRequest{}, fmt.Errorf("query equipment request: %w", err)
	}
	return req, nil
}

// UpdateRequestFrom persists a modified request row if its stored status is
// one of from. The status condition makes the write a compare-and-swap.
func (s *PgStore) UpdateRequestFrom(ctx context.Context, req model.EquipmentRequest, from ...string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE equipment_requests SET
			requested_by = $1,
			status = $2,
			return_due = $3,
			approved_by = $4,
			approved_at = $5,
			rejection_reason = $6,
			return_condition = $7,
			return_notes = $8,
			returned_at = $9,
			claimed_item_ids = $10,
			updated_at = $11
		WHERE id = $12 AND status = ANY($13)`,
		req.RequestedBy, req.Status, req.ReturnDue, req.ApprovedBy, req.ApprovedAt,
		req.RejectionReason, req.ReturnCondition, req.ReturnNotes, req.ReturnedAt,
		req.ClaimedItemIDs, time.Now().UTC(), req.ID, from,
	)
	if err != nil {
		return fmt.Errorf("update equipment request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, err := s.GetRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		return model.NewConflictError(
			fmt.Sprintf("equipment request %q is %s, concurrent update lost", req.ID, current.Status),
		).WithDetail("status", current.Status)
	}
	return nil
}

// ListRequestsByEpisode retrieves all requests for an episode, oldest first.
func (s *PgStore) ListRequestsByEpisode(ctx context.Context, episodeID string) ([]model.EquipmentRequest, error) {
	return s.listRequests(ctx, `WHERE episode_id = $1`, episodeID)
}

// ListRequests retrieves every request.
func (s *PgStore) ListRequests(ctx context.Context) ([]model.EquipmentRequest, error) {
	return s.listRequests(ctx, ``)
}

// DeleteRequestsByEpisode removes all requests for an episode.
func (s *PgStore) DeleteRequestsByEpisode(ctx context.Context, episodeID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM equipment_requests WHERE episode_id = $1`, episodeID); err != nil {
		return fmt.Errorf("delete equipment requests: %w", err)
	}
	return nil
}

func (s *PgStore) listRequests(ctx context.Context, where string, args ...any) ([]model.EquipmentRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM equipment_requests
		`+where+`
		ORDER BY created_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query equipment requests: %w", err)
	}
	defer rows.Close()

	var out []model.EquipmentRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan equipment request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (model.EquipmentRequest, error) {
	var req model.EquipmentRequest
	err := row.Scan(
		&req.ID, &req.EpisodeID, &req.RequestedBy, &req.Items, &req.Status, &req.ReturnDue,
		&req.ApprovedBy, &req.ApprovedAt, &req.RejectionReason, &req.ReturnCondition,
		&req.ReturnNotes, &req.ReturnedAt, &req.ClaimedItemIDs, &req.CreatedAt, &req.UpdatedAt,
	)
	return req, err
}
