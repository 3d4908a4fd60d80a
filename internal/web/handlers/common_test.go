package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/cbir/internal/retrieval"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})

	assertContentType(t, recorder, "application/json")
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusNoContent, nil)

	assertStatusCode(t, recorder, http.StatusNoContent)
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", recorder.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusBadRequest, "bad things")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "bad things")
}

func TestRespondRetrievalError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown image", fmt.Errorf("%w: 7", retrieval.ErrUnknownImage), http.StatusNotFound},
		{"unknown method", retrieval.ErrUnknownMethod, http.StatusBadRequest},
		{"feedback unsupported", retrieval.ErrFeedbackUnsupported, http.StatusBadRequest},
		{"no query", retrieval.ErrNoQuery, http.StatusBadRequest},
		{"no results", retrieval.ErrNoResults, http.StatusConflict},
		{"not ready", retrieval.ErrNotReady, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondRetrievalError(recorder, tc.err)
			assertStatusCode(t, recorder, tc.status)
		})
	}
}

func TestRespondRetrievalError_HidesInternalErrors(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondRetrievalError(recorder, errors.New("connection string leaked"))

	assertJSONError(t, recorder, "retrieval failed")
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("sanitizeForLog() = %q, want %q", got, "abc")
	}
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}

func TestImageIDParam(t *testing.T) {
	tests := []struct {
		value  string
		wantID int
		wantOK bool
	}{
		{"12", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tc.value})
			id, ok := imageIDParam(req)
			if id != tc.wantID || ok != tc.wantOK {
				t.Errorf("imageIDParam(%q) = (%d, %v), want (%d, %v)", tc.value, id, ok, tc.wantID, tc.wantOK)
			}
		})
	}
}
