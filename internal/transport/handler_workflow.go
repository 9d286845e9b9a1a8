package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/greenroomhq/greenroom/internal/workflow"
	"github.com/greenroomhq/greenroom/model"
)

// stepParam parses the {step} URL parameter. Writes a 400 and reports false
// when the parameter is not an integer.
func stepParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		WriteError(w, model.NewBadRequestError("step must be an integer"))
		return 0, false
	}
	return step, true
}

func handleWorkflowState(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		episodeID := chi.URLParam(r, "episodeId")

		state, err := engine.State(r.Context(), episodeID)
		if err != nil {
			WriteError(w, err)
			return
		}
		steps, err := engine.Visualization(r.Context(), episodeID)
		if err != nil {
			WriteError(w, err)
			return
		}

		next := engine.NextStates(state.CurrentState)
		WriteJSON(w, http.StatusOK, map[string]any{
			"state":       state,
			"next_states": next,
			"steps":       steps,
		})
	}
}

func handleWorkflowTransition(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			To    string `json:"to"`
			Notes string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		state, err := engine.Transition(r.Context(), chi.URLParam(r, "episodeId"), model.WorkflowStage(body.To), actor, body.Notes)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

func handleWorkflowHistory(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := engine.History(r.Context(), chi.URLParam(r, "episodeId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, history)
	}
}

func handleStepStart(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		step, ok := stepParam(w, r)
		if !ok {
			return
		}

		progress, err := engine.StartStep(r.Context(), chi.URLParam(r, "episodeId"), step, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, progress)
	}
}

func handleStepComplete(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		step, ok := stepParam(w, r)
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

		progress, err := engine.CompleteStep(r.Context(), chi.URLParam(r, "episodeId"), step, actor, body.Notes)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, progress)
	}
}

func handleStepAssign(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		step, ok := stepParam(w, r)
		if !ok {
			return
		}

		var body struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		progress, err := engine.AssignUser(r.Context(), chi.URLParam(r, "episodeId"), step, body.UserID, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, progress)
	}
}

func handleStepNotes(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		step, ok := stepParam(w, r)
		if !ok {
			return
		}

		var body struct {
			Notes string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		progress, err := engine.UpdateStepNotes(r.Context(), chi.URLParam(r, "episodeId"), step, body.Notes, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, progress)
	}
}

func handleStepReset(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		step, ok := stepParam(w, r)
		if !ok {
			return
		}

		progress, err := engine.ResetStep(r.Context(), chi.URLParam(r, "episodeId"), step, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, progress)
	}
}
