package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/constants"
	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/kozaktomas/cbir/internal/web/middleware"
)

// testConfig creates a minimal config for testing
func testConfig(imageDir string) *config.Config {
	return &config.Config{
		Corpus: config.CorpusConfig{
			ImageDir:    imageDir,
			PathPattern: "{id}.png",
			Size:        30,
		},
		Retrieval: config.RetrievalConfig{
			PageSize: 20,
		},
	}
}

// testEngine creates an engine over n synthetic images
func testEngine(t *testing.T, n int) *retrieval.Engine {
	t.Helper()
	rows := make(map[int][]float64, n)
	for id := 1; id <= n; id++ {
		row := make([]float64, constants.FeatureDim)
		for c := range row {
			row[c] = float64((id*7+c*3)%11) / 10
		}
		rows[id] = row
	}
	cols := make([]string, constants.FeatureDim)
	for i := range cols {
		cols[i] = "f" + strconv.Itoa(i)
	}
	raw, err := features.Build(rows, cols)
	if err != nil {
		t.Fatalf("failed to build matrix: %v", err)
	}
	normalized, _ := features.Normalize(raw)

	engine, err := retrieval.NewEngine(retrieval.DefaultMethods(), &retrieval.Snapshot{
		Features:   raw,
		Normalized: normalized,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

// writeTestImage writes a solid color PNG for the given image id
func writeTestImage(t *testing.T, dir string, id, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{R: uint8(id * 40), G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, strconv.Itoa(id)+".png"), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
}

// newTestSessionManager creates a session manager that is stopped with the test
func newTestSessionManager(t *testing.T, engine *retrieval.Engine) *middleware.SessionManager {
	t.Helper()
	sm := middleware.NewSessionManager("test-secret", nil, engine)
	t.Cleanup(sm.Stop)
	return sm
}

// jsonBody encodes v as a request body
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode request body: %v", err)
	}
	return bytes.NewReader(data)
}

// requestWithSession creates a request carrying the given session in its context
func requestWithSession(method, path string, body io.Reader, session *middleware.Session) *http.Request {
	req := httptest.NewRequest(method, path, body)
	return req.WithContext(middleware.SetSessionInContext(req.Context(), session))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
