// Package transport contains the HTTP router, middleware chain, and all
// request handlers for the production API.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/greenroomhq/greenroom/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes. UNAUTHORIZED
// maps to 403 because core operations use it for authorization failures of an
// already authenticated actor; missing or bad credentials are rejected with
// 401 by the authentication middleware before a core operation runs.
var statusForCode = map[string]int{
	model.ErrBadRequest:          http.StatusBadRequest,
	model.ErrUnauthorized:        http.StatusForbidden,
	model.ErrNotFound:            http.StatusNotFound,
	model.ErrConflict:            http.StatusConflict,
	model.ErrValidationError:     http.StatusUnprocessableEntity,
	model.ErrInternalError:       http.StatusInternalServerError,
	model.ErrInvalidTransition:   http.StatusUnprocessableEntity,
	model.ErrAlreadyStarted:      http.StatusConflict,
	model.ErrAlreadyCompleted:    http.StatusConflict,
	model.ErrNotStarted:          http.StatusConflict,
	model.ErrResourceUnavailable: http.StatusConflict,
	model.ErrInvalidTarget:       http.StatusUnprocessableEntity,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes an ErrorEnvelope as a JSON response with the correct
// HTTP status code. If err is not an *ErrorEnvelope, a generic 500 is returned.
func WriteError(w http.ResponseWriter, err error) {
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// WriteUnauthenticated writes a 401 response for missing or invalid
// credentials.
func WriteUnauthenticated(w http.ResponseWriter, msg string) {
	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, http.StatusUnauthorized, errorResponse{Error: model.NewUnauthorizedError(msg)})
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

// WriteValidationError writes a 422 error response.
func WriteValidationError(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewValidationError(msg))
}
