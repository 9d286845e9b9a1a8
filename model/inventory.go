package model

import "time"

// Inventory item status constants.
const (
	ItemAvailable   = "available"
	ItemInUse       = "in_use"
	ItemMaintenance = "maintenance"
	ItemDamaged     = "damaged"
	ItemLost        = "lost"
	ItemRetired     = "retired"
)

// Equipment request status constants.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
	RequestInUse    = "in_use"
	RequestReturned = "returned"
)

// Return condition constants.
const (
	ConditionGood    = "good"
	ConditionDamaged = "damaged"
	ConditionLost    = "lost"
)

// InventoryItem is a named, categorized equipment unit. At most one active
// equipment request references a given item while it is in use.
type InventoryItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EquipmentRequest is a batch claim against named inventory items. Approval
// is all-or-nothing across the requested name list; partial fulfillment is
// never persisted.
type EquipmentRequest struct {
	ID              string     `json:"id"`
	EpisodeID       string     `json:"episode_id"`
	RequestedBy     string     `json:"requested_by"`
	Items           []string   `json:"items"`
	Status          string     `json:"status"`
	ReturnDue       time.Time  `json:"return_due"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ReturnCondition string     `json:"return_condition,omitempty"`
	ReturnNotes     string     `json:"return_notes,omitempty"`
	ReturnedAt      *time.Time `json:"returned_at,omitempty"`
	ClaimedItemIDs  []string   `json:"claimed_item_ids,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Active reports whether the request still holds or may still claim
// inventory.
func (r EquipmentRequest) Active() bool {
	return r.Status == RequestPending || r.Status == RequestApproved || r.Status == RequestInUse
}

// InventoryStatistics aggregates counts by item status and request status.
type InventoryStatistics struct {
	ItemsByStatus    map[string]int `json:"items_by_status"`
	RequestsByStatus map[string]int `json:"requests_by_status"`
}
