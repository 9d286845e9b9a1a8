package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenroomhq/greenroom/internal/deadline"
	"github.com/greenroomhq/greenroom/model"
)

func handleDeadlineListByEpisode(sched *deadline.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deadlines, err := sched.ForEpisode(r.Context(), chi.URLParam(r, "episodeId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, deadlines)
	}
}

func handleDeadlineListMine(sched *deadline.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		deadlines, err := sched.ForUser(r.Context(), rctx.SubjectID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, deadlines)
	}
}

func handleDeadlineGet(sched *deadline.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := sched.Get(r.Context(), chi.URLParam(r, "deadlineId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, d)
	}
}

func handleDeadlineComplete(sched *deadline.Scheduler) http.HandlerFunc {
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

		d, err := sched.Complete(r.Context(), chi.URLParam(r, "deadlineId"), actor, body.Notes)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, d)
	}
}

func handleDeadlineCancel(sched *deadline.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		d, err := sched.Cancel(r.Context(), chi.URLParam(r, "deadlineId"), actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, d)
	}
}

func handleDeadlineOverdue(sched *deadline.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deadlines, err := sched.Overdue(r.Context(), time.Now().UTC(), r.URL.Query().Get("user_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, deadlines)
	}
}

func handleDeadlineUpcoming(sched *deadline.Scheduler, defaultHorizon time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		horizon := defaultHorizon
		if raw := r.URL.Query().Get("horizon"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed <= 0 {
				WriteError(w, model.NewBadRequestError("horizon must be a positive duration"))
				return
			}
			horizon = parsed
		}

		deadlines, err := sched.Upcoming(r.Context(), time.Now().UTC(), horizon, r.URL.Query().Get("user_id"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, deadlines)
	}
}

func handleDeadlineStatistics(sched *deadline.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := sched.Statistics(r.Context(), r.URL.Query().Get("episode_id"), r.URL.Query().Get("user_id"), time.Now().UTC())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, stats)
	}
}
