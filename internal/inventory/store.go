package inventory

import (
	"context"

	"github.com/greenroomhq/greenroom/model"
)

// Store persists inventory items and equipment requests. ClaimAvailableByNames
// is the atomic claim primitive: each implementation must guarantee that two
// concurrent claims never take the same physical item.
type Store interface {
	// CreateItem persists a new inventory item.
	CreateItem(ctx context.Context, item model.InventoryItem) error

	// GetItem retrieves an item by ID. Returns NOT_FOUND if absent.
	GetItem(ctx context.Context, id string) (model.InventoryItem, error)

	// UpdateItem persists a modified item with optimistic locking on
	// Version. Returns CONFLICT on version mismatch.
	UpdateItem(ctx context.Context, item model.InventoryItem) error

	// ListItems retrieves every item, ordered by name then ID.
	ListItems(ctx context.Context) ([]model.InventoryItem, error)

	// ClaimAvailableByNames atomically claims one available item per name
	// in the list and marks the claimed items in_use. Duplicate names
	// claim distinct physical items. If any name cannot be satisfied the
	// whole claim fails with RESOURCE_UNAVAILABLE naming the first
	// unsatisfiable item, and no item status changes.
	ClaimAvailableByNames(ctx context.Context, names []string) ([]model.InventoryItem, error)

	// ReleaseItems sets the status of the given items. Used on return and
	// on request cancellation.
	ReleaseItems(ctx context.Context, itemIDs []string, status string) error

	// CreateRequest persists a new equipment request.
	CreateRequest(ctx context.Context, req model.EquipmentRequest) error

	// GetRequest retrieves a request by ID. Returns NOT_FOUND if absent.
	GetRequest(ctx context.Context, id string) (model.EquipmentRequest, error)

	// UpdateRequestFrom persists a modified request only while its stored
	// status is one of from. Returns CONFLICT if a concurrent mutation got
	// there first, NOT_FOUND if the request is absent. Every request
	// mutation runs through this guard so two racing writers cannot both
	// win.
	UpdateRequestFrom(ctx context.Context, req model.EquipmentRequest, from ...string) error

	// ListRequestsByEpisode retrieves all requests for an episode, oldest
	// first.
	ListRequestsByEpisode(ctx context.Context, episodeID string) ([]model.EquipmentRequest, error)

	// ListRequests retrieves every request. Feeds statistics.
	ListRequests(ctx context.Context) ([]model.EquipmentRequest, error)

	// DeleteRequestsByEpisode removes all requests for an episode. Used
	// only by the episode delete cascade.
	DeleteRequestsByEpisode(ctx context.Context, episodeID string) error
}
