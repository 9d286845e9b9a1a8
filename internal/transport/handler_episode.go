package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenroomhq/greenroom/internal/episode"
	"github.com/greenroomhq/greenroom/model"
)

func handleProgramCreate(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		program, err := svc.CreateProgram(r.Context(), body.Name, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, program)
	}
}

func handleProgramList(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		programs, err := svc.Programs(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, programs)
	}
}

func handleEpisodeCreate(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			ProgramID string    `json:"program_id"`
			Title     string    `json:"title"`
			AirDate   time.Time `json:"air_date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		ep, err := svc.CreateEpisode(r.Context(), body.ProgramID, body.Title, body.AirDate, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ep)
	}
}

func handleEpisodeGet(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ep, err := svc.Get(r.Context(), chi.URLParam(r, "episodeId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ep)
	}
}

func handleEpisodeList(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		episodes, err := svc.ForProgram(r.Context(), chi.URLParam(r, "programId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, episodes)
	}
}

func handleEpisodeReschedule(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			AirDate time.Time `json:"air_date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		ep, err := svc.Reschedule(r.Context(), chi.URLParam(r, "episodeId"), body.AirDate, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ep)
	}
}

func handleEpisodeDelete(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "episodeId"), actor); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusNoContent, nil)
	}
}

func handleCrewAssign(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var body struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		role, ok := model.ParseRole(body.Role)
		if !ok {
			WriteValidationError(w, "unknown role "+body.Role)
			return
		}

		assignment, err := svc.AssignCrew(r.Context(), chi.URLParam(r, "episodeId"), body.UserID, role, actor)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, assignment)
	}
}

func handleCrewList(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		crew, err := svc.Crew(r.Context(), chi.URLParam(r, "episodeId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, crew)
	}
}

func handleCrewRemove(svc *episode.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		if err := svc.RemoveCrew(r.Context(), chi.URLParam(r, "assignmentId"), actor); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusNoContent, nil)
	}
}
