// Package inventory manages the finite equipment pool: batch requests,
// all-or-nothing approval, condition-driven returns, and the workflow cascade
// that fires when an episode's last active request resolves.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenroomhq/greenroom/internal/roles"
	"github.com/greenroomhq/greenroom/model"
)

// WorkflowAdvancer is the cascade hook invoked after a return leaves an
// episode with zero active requests. Implemented by the workflow engine.
type WorkflowAdvancer interface {
	AdvanceAfterEquipmentReturn(ctx context.Context, episodeID string) (advanced bool, err error)
}

// Allocator coordinates equipment requests against the item pool. Approval is
// all-or-nothing: the store's claim primitive either takes every named item
// or none.
type Allocator struct {
	store      Store
	tables     *roles.Tables
	workflow   WorkflowAdvancer
	dispatcher model.Dispatcher
}

// NewAllocator creates a new allocator. workflow and dispatcher may be nil,
// in which case the corresponding side effects are skipped.
func NewAllocator(store Store, tables *roles.Tables, workflow WorkflowAdvancer, dispatcher model.Dispatcher) *Allocator {
	if dispatcher == nil {
		dispatcher = model.NopDispatcher{}
	}
	return &Allocator{
		store:      store,
		tables:     tables,
		workflow:   workflow,
		dispatcher: dispatcher,
	}
}

// Request opens a pending equipment request for an episode. The actor's role
// must be eligible for equipment requests per the task-role table.
func (a *Allocator) Request(
	ctx context.Context,
	episodeID string,
	items []string,
	actor model.Actor,
	returnDue time.Time,
) (model.EquipmentRequest, error) {
	if err := actor.Validate(); err != nil {
		return model.EquipmentRequest{}, model.NewValidationError(err.Error())
	}
	if len(items) == 0 {
		return model.EquipmentRequest{}, model.NewValidationError("equipment request needs at least one item name")
	}
	for _, name := range items {
		if name == "" {
			return model.EquipmentRequest{}, model.NewValidationError("item names must be non-empty")
		}
	}

	eligible, ok := a.tables.TaskRoles(model.TaskEquipmentRequest)
	if !ok || !(actor.Role.IsManager() || eligible.Has(actor.Role)) {
		return model.EquipmentRequest{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot request equipment", actor.Role),
		).WithDetail("required_roles", eligible.Roles())
	}

	now := time.Now().UTC()
	req := model.EquipmentRequest{
		ID:          uuid.New().String(),
		EpisodeID:   episodeID,
		RequestedBy: actor.ID,
		Items:       append([]string(nil), items...),
		Status:      model.RequestPending,
		ReturnDue:   returnDue,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.CreateRequest(ctx, req); err != nil {
		return model.EquipmentRequest{}, err
	}
	return req, nil
}

// Approve claims one available item per requested name and moves the request
// to in_use. The claim is all-or-nothing: if any name cannot be satisfied the
// approval fails with RESOURCE_UNAVAILABLE and no item status changes.
func (a *Allocator) Approve(ctx context.Context, requestID string, actor model.Actor, notes string) (model.EquipmentRequest, error) {
	if err := a.authorizeApprover(actor); err != nil {
		return model.EquipmentRequest{}, err
	}

	req, err := a.store.GetRequest(ctx, requestID)
	if err != nil {
		return model.EquipmentRequest{}, err
	}
	if req.Status != model.RequestPending {
		return model.EquipmentRequest{}, model.NewConflictError(
			fmt.Sprintf("equipment request %q is %s, only pending requests can be approved", requestID, req.Status),
		).WithDetail("status", req.Status)
	}

	claimed, err := a.store.ClaimAvailableByNames(ctx, req.Items)
	if err != nil {
		return model.EquipmentRequest{}, err
	}

	now := time.Now().UTC()
	req.Status = model.RequestInUse
	req.ApprovedBy = actor.ID
	req.ApprovedAt = &now
	if notes != "" {
		req.ReturnNotes = notes
	}
	req.ClaimedItemIDs = make([]string, 0, len(claimed))
	for _, item := range claimed {
		req.ClaimedItemIDs = append(req.ClaimedItemIDs, item.ID)
	}
	if err := a.store.UpdateRequestFrom(ctx, req, model.RequestPending); err != nil {
		// The claim committed but the request row did not, either because
		// a concurrent approval won or the write failed. Release the items
		// so they are not stranded in_use.
		_ = a.store.ReleaseItems(ctx, req.ClaimedItemIDs, model.ItemAvailable)
		return model.EquipmentRequest{}, err
	}

	a.dispatcher.Dispatch(model.Notification{
		Recipient: req.RequestedBy,
		Type:      model.NotifyEquipmentApproved,
		Title:     "Equipment request approved",
		Message:   fmt.Sprintf("%d item(s) allocated for your request", len(claimed)),
		Data:      map[string]any{"episode_id": req.EpisodeID, "request_id": req.ID},
	})

	return req, nil
}

// Reject declines a pending request. Rejecting a non-pending request fails
// with CONFLICT.
func (a *Allocator) Reject(ctx context.Context, requestID string, actor model.Actor, reason string) (model.EquipmentRequest, error) {
	if err := a.authorizeApprover(actor); err != nil {
		return model.EquipmentRequest{}, err
	}
	if reason == "" {
		return model.EquipmentRequest{}, model.NewValidationError("rejection reason is required")
	}

	req, err := a.store.GetRequest(ctx, requestID)
	if err != nil {
		return model.EquipmentRequest{}, err
	}
	if req.Status != model.RequestPending {
		return model.EquipmentRequest{}, model.NewConflictError(
			fmt.Sprintf("equipment request %q is %s, only pending requests can be rejected", requestID, req.Status),
		).WithDetail("status", req.Status)
	}

	req.Status = model.RequestRejected
	req.RejectionReason = reason
	if err := a.store.UpdateRequestFrom(ctx, req, model.RequestPending); err != nil {
		return model.EquipmentRequest{}, err
	}

	a.dispatcher.Dispatch(model.Notification{
		Recipient: req.RequestedBy,
		Type:      model.NotifyEquipmentRejected,
		Title:     "Equipment request rejected",
		Message:   reason,
		Data:      map[string]any{"episode_id": req.EpisodeID, "request_id": req.ID},
	})

	return req, nil
}

// Return closes an in-use request. The condition drives each claimed item's
// new status: good items go back to available, damaged and lost items are
// flagged accordingly. When the episode is left with zero active requests the
// workflow cascade fires.
func (a *Allocator) Return(ctx context.Context, requestID, condition, notes string, actor model.Actor) (model.EquipmentRequest, error) {
	if err := actor.Validate(); err != nil {
		return model.EquipmentRequest{}, model.NewValidationError(err.Error())
	}

	itemStatus, ok := itemStatusForCondition(condition)
	if !ok {
		return model.EquipmentRequest{}, model.NewValidationError(
			fmt.Sprintf("unknown return condition %q", condition),
		).WithDetail("allowed", []string{model.ConditionGood, model.ConditionDamaged, model.ConditionLost})
	}

	req, err := a.store.GetRequest(ctx, requestID)
	if err != nil {
		return model.EquipmentRequest{}, err
	}
	if req.Status != model.RequestApproved && req.Status != model.RequestInUse {
		return model.EquipmentRequest{}, model.NewConflictError(
			fmt.Sprintf("equipment request %q is %s, only allocated requests can be returned", requestID, req.Status),
		).WithDetail("status", req.Status)
	}

	if err := a.store.ReleaseItems(ctx, req.ClaimedItemIDs, itemStatus); err != nil {
		return model.EquipmentRequest{}, err
	}

	now := time.Now().UTC()
	req.Status = model.RequestReturned
	req.ReturnCondition = condition
	req.ReturnedAt = &now
	if notes != "" {
		req.ReturnNotes = notes
	}
	if err := a.store.UpdateRequestFrom(ctx, req, model.RequestApproved, model.RequestInUse); err != nil {
		return model.EquipmentRequest{}, err
	}

	a.dispatcher.Dispatch(model.Notification{
		Recipient: req.RequestedBy,
		Type:      model.NotifyEquipmentReturned,
		Title:     "Equipment returned",
		Message:   fmt.Sprintf("Request closed with condition %s", condition),
		Data:      map[string]any{"episode_id": req.EpisodeID, "request_id": req.ID},
	})

	if err := a.cascade(ctx, req.EpisodeID); err != nil {
		return model.EquipmentRequest{}, err
	}
	return req, nil
}

// cascade advances the owning episode's workflow when no active requests
// remain. The engine side is idempotent, so repeated triggers are safe.
func (a *Allocator) cascade(ctx context.Context, episodeID string) error {
	if a.workflow == nil {
		return nil
	}

	reqs, err := a.store.ListRequestsByEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if r.Active() {
			return nil
		}
	}

	_, err = a.workflow.AdvanceAfterEquipmentReturn(ctx, episodeID)
	if model.CodeOf(err) == model.ErrNotFound {
		// Episode without a workflow record; nothing to advance.
		return nil
	}
	return err
}

// AddItem registers a new available inventory item.
func (a *Allocator) AddItem(ctx context.Context, name, category string, actor model.Actor) (model.InventoryItem, error) {
	if !actor.Role.IsManager() {
		return model.InventoryItem{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot manage inventory", actor.Role),
		)
	}
	if name == "" {
		return model.InventoryItem{}, model.NewValidationError("item name is required")
	}

	now := time.Now().UTC()
	item := model.InventoryItem{
		ID:        uuid.New().String(),
		Name:      name,
		Category:  category,
		Status:    model.ItemAvailable,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateItem(ctx, item); err != nil {
		return model.InventoryItem{}, err
	}
	return item, nil
}

// SetItemStatus moves an item between the management statuses (available,
// maintenance, retired). Items currently in use cannot be moved; they leave
// in_use only through a return.
func (a *Allocator) SetItemStatus(ctx context.Context, itemID, status string, actor model.Actor) (model.InventoryItem, error) {
	if !actor.Role.IsManager() {
		return model.InventoryItem{}, model.NewUnauthorizedError(
			fmt.Sprintf("role %s cannot manage inventory", actor.Role),
		)
	}
	switch status {
	case model.ItemAvailable, model.ItemMaintenance, model.ItemRetired:
	default:
		return model.InventoryItem{}, model.NewValidationError(
			fmt.Sprintf("cannot set item status to %q", status),
		).WithDetail("allowed", []string{model.ItemAvailable, model.ItemMaintenance, model.ItemRetired})
	}

	item, err := a.store.GetItem(ctx, itemID)
	if err != nil {
		return model.InventoryItem{}, err
	}
	if item.Status == model.ItemInUse {
		return model.InventoryItem{}, model.NewConflictError(
			fmt.Sprintf("inventory item %q is in use and cannot be moved to %s", itemID, status),
		)
	}

	item.Status = status
	if err := a.store.UpdateItem(ctx, item); err != nil {
		return model.InventoryItem{}, err
	}
	item.Version++
	return item, nil
}

// Items lists every inventory item.
func (a *Allocator) Items(ctx context.Context) ([]model.InventoryItem, error) {
	return a.store.ListItems(ctx)
}

// GetRequest retrieves one equipment request.
func (a *Allocator) GetRequest(ctx context.Context, requestID string) (model.EquipmentRequest, error) {
	return a.store.GetRequest(ctx, requestID)
}

// RequestsForEpisode lists an episode's equipment requests, oldest first.
func (a *Allocator) RequestsForEpisode(ctx context.Context, episodeID string) ([]model.EquipmentRequest, error) {
	return a.store.ListRequestsByEpisode(ctx, episodeID)
}

// SetRequestAssignee transfers a pending or allocated request to a new
// requester. Called by the reassignment auditor after target validation.
func (a *Allocator) SetRequestAssignee(ctx context.Context, requestID, userID string) (previous string, err error) {
	req, err := a.store.GetRequest(ctx, requestID)
	if err != nil {
		return "", err
	}
	if !req.Active() {
		return "", model.NewConflictError(
			fmt.Sprintf("equipment request %q is %s and cannot be reassigned", requestID, req.Status),
		)
	}

	previous = req.RequestedBy
	req.RequestedBy = userID
	if err := a.store.UpdateRequestFrom(ctx, req, model.RequestPending, model.RequestApproved, model.RequestInUse); err != nil {
		return "", err
	}
	return previous, nil
}

// Statistics aggregates item counts by status and request counts by status.
func (a *Allocator) Statistics(ctx context.Context) (model.InventoryStatistics, error) {
	items, err := a.store.ListItems(ctx)
	if err != nil {
		return model.InventoryStatistics{}, err
	}
	reqs, err := a.store.ListRequests(ctx)
	if err != nil {
		return model.InventoryStatistics{}, err
	}

	stats := model.InventoryStatistics{
		ItemsByStatus:    make(map[string]int),
		RequestsByStatus: make(map[string]int),
	}
	for _, item := range items {
		stats.ItemsByStatus[item.Status]++
	}
	for _, req := range reqs {
		stats.RequestsByStatus[req.Status]++
	}
	return stats, nil
}

// DropEpisode releases any items still held by the episode's requests and
// removes the requests. Called only by the episode delete cascade.
func (a *Allocator) DropEpisode(ctx context.Context, episodeID string) error {
	reqs, err := a.store.ListRequestsByEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		if req.Active() && len(req.ClaimedItemIDs) > 0 {
			if err := a.store.ReleaseItems(ctx, req.ClaimedItemIDs, model.ItemAvailable); err != nil {
				return err
			}
		}
	}
	return a.store.DeleteRequestsByEpisode(ctx, episodeID)
}

// authorizeApprover gates approval and rejection: manager tier plus the art
// and set designer, who runs the equipment store.
func (a *Allocator) authorizeApprover(actor model.Actor) error {
	if actor.Role.IsManager() || actor.Role == model.RoleArtSetDesigner {
		return nil
	}
	return model.NewUnauthorizedError(
		fmt.Sprintf("role %s cannot approve or reject equipment requests", actor.Role),
	).WithDetail("required_roles", []model.Role{
		model.RoleArtSetDesigner, model.RoleProductionManager, model.RoleAdmin,
	})
}

func itemStatusForCondition(condition string) (string, bool) {
	switch condition {
	case model.ConditionGood:
		return model.ItemAvailable, true
	case model.ConditionDamaged:
		return model.ItemDamaged, true
	case model.ConditionLost:
		return model.ItemLost, true
	}
	return "", false
}
