package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenroomhq/greenroom/internal/inventory"
	"github.com/greenroomhq/greenroom/model"
)

func handleItemAdd(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			Name     string `json:"name"`
			Category string `json:"category"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		item, err := alloc.AddItem(r.Context(), body.Name, body.Category, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, item)
	}
}

func handleItemList(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := alloc.Items(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, items)
	}
}

func handleItemStatus(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		item, err := alloc.SetItemStatus(r.Context(), chi.URLParam(r, "itemId"), body.Status, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, item)
	}
}

func handleInventoryStatistics(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := alloc.Statistics(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, stats)
	}
}

func handleRequestCreate(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			EpisodeID string    `json:"episode_id"`
			Items     []string  `json:"items"`
			ReturnDue time.Time `json:"return_due"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		req, err := alloc.Request(r.Context(), body.EpisodeID, body.Items, actor, body.ReturnDue)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, req)
	}
}

func handleRequestGet(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := alloc.GetRequest(r.Context(), chi.URLParam(r, "requestId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, req)
	}
}

func handleRequestListByEpisode(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests, err := alloc.RequestsForEpisode(r.Context(), chi.URLParam(r, "episodeId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, requests)
	}
}

func handleRequestApprove(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			Notes string `json:"notes"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				WriteError(w, model.NewBadRequestError("invalid JSON body"))
				return
			}
		}

		req, err := alloc.Approve(r.Context(), chi.URLParam(r, "requestId"), actor, body.Notes)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, req)
	}
}

func handleRequestReject(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		req, err := alloc.Reject(r.Context(), chi.URLParam(r, "requestId"), actor, body.Reason)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, req)
	}
}

func handleRequestReturn(alloc *inventory.Allocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			Condition string `json:"condition"`
			Notes     string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		req, err := alloc.Return(r.Context(), chi.URLParam(r, "requestId"), body.Condition, body.Notes, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, req)
	}
}
