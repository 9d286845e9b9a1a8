package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/greenroomhq/greenroom/model"
)

// TestEquipmentReturnGate verifies that returning the last active equipment
// request automatically advances the episode out of production.
func TestEquipmentReturnGate(t *testing.T) {
	h := NewTestHarness(t)
	manager := h.GenerateToken(ManagerClaims())
	producer := h.GenerateToken(ProducerClaims())

	ep := h.CreateEpisode(t, time.Now().AddDate(0, 0, 21))

	var item model.InventoryItem
	h.AssertJSON(t, h.POST("/inventory/items",
		map[string]any{"name": "camera-fx6", "category": "camera"}, manager), http.StatusCreated, &item)

	var state model.WorkflowState
	for _, stage := range []string{"pre_production", "production"} {
		h.AssertJSON(t, h.POST("/episodes/"+ep.ID+"/transition",
			map[string]any{"to": stage}, manager), http.StatusOK, &state)
	}

	var req model.EquipmentRequest
	h.AssertJSON(t, h.POST("/equipment/requests", map[string]any{
		"episode_id": ep.ID,
		"items":      []string{item.Name},
		"return_due": time.Now().AddDate(0, 0, 7),
	}, producer), http.StatusCreated, &req)

	h.AssertJSON(t, h.POST("/equipment/requests/"+req.ID+"/approve", nil, manager), http.StatusOK, &req)
	if req.Status != model.RequestInUse {
		t.Fatalf("request status = %s, want in_use", req.Status)
	}

	// The claimed item is now held by the request.
	var items []model.InventoryItem
	h.AssertJSON(t, h.GET("/inventory/items", manager), http.StatusOK, &items)
	for _, it := range items {
		if it.ID == item.ID && it.Status != model.ItemInUse {
			t.Fatalf("item status = %s, want in_use", it.Status)
		}
	}

	h.AssertJSON(t, h.POST("/equipment/requests/"+req.ID+"/return",
		map[string]any{"condition": "good"}, manager), http.StatusOK, &req)
	if req.Status != model.RequestReturned {
		t.Fatalf("request status = %s, want returned", req.Status)
	}

	// The return of the last active request advanced production to editing.
	var view struct {
		State model.WorkflowState `json:"state"`
	}
	h.AssertJSON(t, h.GET("/episodes/"+ep.ID+"/workflow", manager), http.StatusOK, &view)
	if view.State.CurrentState != model.StageEditing {
		t.Fatalf("stage after return = %s, want editing", view.State.CurrentState)
	}
}

// TestEquipmentReturnGateHoldsWhileActive verifies that the episode stays in
// production while another request is still out.
func TestEquipmentReturnGateHoldsWhileActive(t *testing.T) {
	h := NewTestHarness(t)
	manager := h.GenerateToken(ManagerClaims())
	producer := h.GenerateToken(ProducerClaims())

	ep := h.CreateEpisode(t, time.Now().AddDate(0, 0, 21))

	var camera, boom model.InventoryItem
	h.AssertJSON(t, h.POST("/inventory/items",
		map[string]any{"name": "camera-a7", "category": "camera"}, manager), http.StatusCreated, &camera)
	h.AssertJSON(t, h.POST("/inventory/items",
		map[string]any{"name": "boom-mic", "category": "audio"}, manager), http.StatusCreated, &boom)

	var state model.WorkflowState
	for _, stage := range []string{"pre_production", "production"} {
		h.AssertJSON(t, h.POST("/episodes/"+ep.ID+"/transition",
			map[string]any{"to": stage}, manager), http.StatusOK, &state)
	}

	makeRequest := func(itemName string) model.EquipmentRequest {
		var req model.EquipmentRequest
		h.AssertJSON(t, h.POST("/equipment/requests", map[string]any{
			"episode_id": ep.ID,
			"items":      []string{itemName},
			"return_due": time.Now().AddDate(0, 0, 7),
		}, producer), http.StatusCreated, &req)
		h.AssertJSON(t, h.POST("/equipment/requests/"+req.ID+"/approve", nil, manager), http.StatusOK, &req)
		return req
	}
	first := makeRequest(camera.Name)
	second := makeRequest(boom.Name)

	h.AssertJSON(t, h.POST("/equipment/requests/"+first.ID+"/return",
		map[string]any{"condition": "good"}, manager), http.StatusOK, &first)

	var view struct {
		State model.WorkflowState `json:"state"`
	}
	h.AssertJSON(t, h.GET("/episodes/"+ep.ID+"/workflow", manager), http.StatusOK, &view)
	if view.State.CurrentState != model.StageProduction {
		t.Fatalf("stage with active request = %s, want production", view.State.CurrentState)
	}

	h.AssertJSON(t, h.POST("/equipment/requests/"+second.ID+"/return",
		map[string]any{"condition": "damaged", "notes": "windscreen torn"}, manager), http.StatusOK, &second)

	h.AssertJSON(t, h.GET("/episodes/"+ep.ID+"/workflow", manager), http.StatusOK, &view)
	if view.State.CurrentState != model.StageEditing {
		t.Fatalf("stage after final return = %s, want editing", view.State.CurrentState)
	}

	// A damaged return parks the item out of circulation.
	var items []model.InventoryItem
	h.AssertJSON(t, h.GET("/inventory/items", manager), http.StatusOK, &items)
	for _, it := range items {
		if it.ID == boom.ID && it.Status != model.ItemDamaged {
			t.Fatalf("damaged item status = %s, want damaged", it.Status)
		}
	}
}

// TestEquipmentRequestRejected verifies a rejected request never claims
// inventory and cannot be returned.
func TestEquipmentRequestRejected(t *testing.T) {
	h := NewTestHarness(t)
	manager := h.GenerateToken(ManagerClaims())
	producer := h.GenerateToken(ProducerClaims())

	ep := h.CreateEpisode(t, time.Now().AddDate(0, 0, 21))

	var item model.InventoryItem
	h.AssertJSON(t, h.POST("/inventory/items",
		map[string]any{"name": "dolly", "category": "grip"}, manager), http.StatusCreated, &item)

	var req model.EquipmentRequest
	h.AssertJSON(t, h.POST("/equipment/requests", map[string]any{
		"episode_id": ep.ID,
		"items":      []string{item.Name},
		"return_due": time.Now().AddDate(0, 0, 7),
	}, producer), http.StatusCreated, &req)

	h.AssertJSON(t, h.POST("/equipment/requests/"+req.ID+"/reject",
		map[string]any{"reason": "double booked"}, manager), http.StatusOK, &req)
	if req.Status != model.RequestRejected {
		t.Fatalf("request status = %s, want rejected", req.Status)
	}

	h.AssertErrorCode(t, h.POST("/equipment/requests/"+req.ID+"/return",
		map[string]any{"condition": "good"}, manager), http.StatusConflict, model.ErrConflict)

	var items []model.InventoryItem
	h.AssertJSON(t, h.GET("/inventory/items", manager), http.StatusOK, &items)
	for _, it := range items {
		if it.ID == item.ID && it.Status != model.ItemAvailable {
			t.Fatalf("item status = %s, want available", it.Status)
		}
	}
}
