package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenroomhq/greenroom/internal/reassign"
	"github.com/greenroomhq/greenroom/model"
)

// taskTypeParam parses the {taskType} URL parameter. Writes a 400 and reports
// false when the value is not a known task type.
func taskTypeParam(w http.ResponseWriter, r *http.Request) (model.TaskType, bool) {
	raw := chi.URLParam(r, "taskType")
	taskType, ok := model.ParseTaskType(raw)
	if !ok {
		WriteError(w, model.NewBadRequestError("unknown task type "+raw))
		return "", false
	}
	return taskType, true
}

func handleReassign(auditor *reassign.Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			TaskType    string `json:"task_type"`
			TaskID      string `json:"task_id"`
			NewAssignee string `json:"new_assignee"`
			Reason      string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		taskType, ok := model.ParseTaskType(body.TaskType)
		if !ok {
			WriteValidationError(w, "unknown task type "+body.TaskType)
			return
		}

		record, err := auditor.Reassign(r.Context(), taskType, body.TaskID, body.NewAssignee, actor, body.Reason)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, record)
	}
}

func handleReassignHistory(auditor *reassign.Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskType, ok := taskTypeParam(w, r)
		if !ok {
			return
		}

		records, err := auditor.History(r.Context(), taskType, chi.URLParam(r, "taskId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, records)
	}
}

func handleEligibleUsers(auditor *reassign.Auditor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskType, ok := taskTypeParam(w, r)
		if !ok {
			return
		}

		users, err := auditor.EligibleUsers(r.Context(), taskType)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, users)
	}
}
