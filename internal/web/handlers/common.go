package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/kozaktomas/cbir/internal/web/middleware"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// errNoSession is returned when a handler runs without the session middleware.
const errNoSession = "no session"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondRetrievalError maps retrieval errors to HTTP status codes.
func respondRetrievalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, retrieval.ErrUnknownImage):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, retrieval.ErrUnknownMethod),
		errors.Is(err, retrieval.ErrFeedbackUnsupported),
		errors.Is(err, retrieval.ErrNoQuery):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, retrieval.ErrNoResults):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, retrieval.ErrNotReady):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("Retrieval failed: %v", err)
		respondError(w, http.StatusInternalServerError, "retrieval failed")
	}
}

// imageIDParam parses the {id} URL parameter.
func imageIDParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// requireSession returns the session attached by the session middleware,
// writing an error response when there is none.
func requireSession(w http.ResponseWriter, r *http.Request) *middleware.Session {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, errNoSession)
	}
	return session
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
