package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"modelhostd/internal/lifecycle"
	"modelhostd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps the lifecycle error taxonomy onto HTTP status
// codes.
func statusForError(err error) int {
	switch {
	case lifecycle.IsNotFound(err):
		return http.StatusNotFound
	case lifecycle.IsConflict(err):
		return http.StatusConflict
	case lifecycle.IsResourceExhausted(err):
		return http.StatusInsufficientStorage
	case lifecycle.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case lifecycle.IsBackendFailure(err):
		return http.StatusBadGateway
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeLifecycleError maps err to a status, writes the JSON payload
// and logs the failed operation.
func writeLifecycleError(w http.ResponseWriter, r *http.Request, op, id string, start time.Time, err error) {
	status := statusForError(err)
	writeJSONError(w, status, err.Error())
	logOpError(r, op, id, status, start, err)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
