package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/cbir/internal/constants"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/database/mock"
	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// testEngine creates an engine over n synthetic images
func testEngine(t *testing.T, n int) *retrieval.Engine {
	t.Helper()
	rows := make(map[int][]float64, n)
	for id := 1; id <= n; id++ {
		row := make([]float64, constants.FeatureDim)
		for c := range row {
			row[c] = float64((id*5+c*3)%13) / 10
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
	e, err := retrieval.NewEngine(retrieval.DefaultMethods(), &retrieval.Snapshot{Features: raw, Normalized: normalized})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func newTestManager(t *testing.T, store database.SessionStore) *SessionManager {
	t.Helper()
	sm := NewSessionManager("test-secret", store, testEngine(t, 10))
	t.Cleanup(sm.Stop)
	return sm
}

func TestSessionManager_CreateAndGet(t *testing.T) {
	sm := newTestManager(t, nil)

	session := sm.CreateSession()
	if session.ID == "" {
		t.Fatal("session ID is empty")
	}
	if session.ExpiresAt.Before(time.Now()) {
		t.Error("session expires in the past")
	}
	if sm.Count() != 1 {
		t.Errorf("Count() = %d, want 1", sm.Count())
	}

	if got := sm.GetSession(context.Background(), session.ID); got != session {
		t.Error("GetSession() did not return the created session")
	}
	if got := sm.GetSession(context.Background(), "nonexistent-id"); got != nil {
		t.Error("GetSession() should return nil for non-existing session")
	}

	session.Do(func(rs *retrieval.Session) error {
		if rs.State() != retrieval.StateNoResults {
			t.Errorf("new session state = %s, want %s", rs.State(), retrieval.StateNoResults)
		}
		return nil
	})
}

func TestSessionManager_UniqueIDs(t *testing.T) {
	sm := newTestManager(t, nil)

	seen := make(map[string]bool)
	for range 50 {
		id := sm.CreateSession().ID
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true
	}
}

func TestSessionManager_DeleteSession(t *testing.T) {
	store := mock.NewMockSessionStore()
	sm := newTestManager(t, store)

	session := sm.CreateSession()
	sm.Persist(context.Background(), session)
	if store.Len() != 1 {
		t.Fatalf("expected persisted session, store has %d", store.Len())
	}

	sm.DeleteSession(context.Background(), session.ID)

	if sm.GetSession(context.Background(), session.ID) != nil {
		t.Error("GetSession() should return nil after deletion")
	}
	if store.Len() != 0 {
		t.Errorf("expected session removed from store, store has %d", store.Len())
	}
}

func TestSessionManager_ExpiredSession(t *testing.T) {
	sm := newTestManager(t, nil)

	session := sm.CreateSession()
	session.ExpiresAt = time.Now().Add(-time.Minute)

	if sm.GetSession(context.Background(), session.ID) != nil {
		t.Error("GetSession() should return nil for an expired session")
	}
	if sm.Count() != 0 {
		t.Errorf("expired session still held, Count() = %d", sm.Count())
	}
}

func TestSessionManager_CleanupExpired(t *testing.T) {
	store := mock.NewMockSessionStore()
	sm := newTestManager(t, store)

	live := sm.CreateSession()
	expired := sm.CreateSession()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	sm.Persist(context.Background(), live)
	sm.Persist(context.Background(), expired)

	sm.cleanupExpired(context.Background())

	if sm.Count() != 1 {
		t.Errorf("Count() = %d, want 1", sm.Count())
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d sessions, want 1", store.Len())
	}
}

func TestSessionManager_RestoreFromStore(t *testing.T) {
	store := mock.NewMockSessionStore()
	engine := testEngine(t, 10)

	first := NewSessionManager("test-secret", store, engine)
	t.Cleanup(first.Stop)
	session := first.CreateSession()
	var want []retrieval.Result
	err := session.Do(func(rs *retrieval.Session) error {
		rs.SelectQuery(3)
		rs.SelectMethod(retrieval.MethodFeedback)
		if err := rs.Run(engine); err != nil {
			return err
		}
		if err := rs.SubmitFeedback(engine, 4, 5); err != nil {
			return err
		}
		want = rs.Results()
		return nil
	})
	if err != nil {
		t.Fatalf("session setup failed: %v", err)
	}
	first.Persist(context.Background(), session)

	// A fresh manager, as after a restart
	second := NewSessionManager("test-secret", store, engine)
	t.Cleanup(second.Stop)

	restored := second.GetSession(context.Background(), session.ID)
	if restored == nil {
		t.Fatal("GetSession() did not restore the persisted session")
	}
	restored.Do(func(rs *retrieval.Session) error {
		if rs.State() != retrieval.StateRankedFeedback || rs.Round() != 1 {
			t.Errorf("restored state = %s round %d", rs.State(), rs.Round())
		}
		got := rs.Results()
		if len(got) != len(want) {
			t.Fatalf("restored %d results, want %d", len(got), len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("result %d = %+v, want %+v", i, got[i], want[i])
			}
		}
		return nil
	})
}

func TestSessionManager_RestoreInvalidStateStartsFresh(t *testing.T) {
	store := mock.NewMockSessionStore()
	now := time.Now()
	state := retrieval.SessionState{
		QueryID: 999,
		Method:  retrieval.MethodFeedback,
		State:   retrieval.StateRankedUniform,
	}
	if err := store.Save(context.Background(), "stale", state, now, now.Add(time.Hour)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	sm := newTestManager(t, store)

	session := sm.GetSession(context.Background(), "stale")
	if session == nil {
		t.Fatal("GetSession() returned nil")
	}
	session.Do(func(rs *retrieval.Session) error {
		if rs.State() != retrieval.StateNoResults {
			t.Errorf("state = %s, want %s", rs.State(), retrieval.StateNoResults)
		}
		return nil
	})
}

func TestSessionManager_SetAndGetSessionCookie(t *testing.T) {
	sm := newTestManager(t, nil)
	session := sm.CreateSession()

	w := httptest.NewRecorder()
	sm.SetSessionCookie(w, session)

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
			break
		}
	}
	if sessionCookie == nil {
		t.Fatal("Session cookie not found")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie)

	retrieved := sm.GetSessionFromRequest(req)
	if retrieved == nil {
		t.Fatal("GetSessionFromRequest() returned nil")
	}
	if retrieved.ID != session.ID {
		t.Errorf("Session ID = %s, want %s", retrieved.ID, session.ID)
	}
}

func TestSessionManager_InvalidCookie(t *testing.T) {
	sm := newTestManager(t, nil)
	session := sm.CreateSession()
	other := NewSessionManager("other-secret", nil, nil)
	defer other.Stop()

	tests := []struct {
		name  string
		value string
	}{
		{"bad signature", session.ID + ".invalid-signature"},
		{"no signature", session.ID},
		{"empty", ""},
		{"other secret", session.ID + "." + other.signData(session.ID)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tc.value})

			if sm.GetSessionFromRequest(req) != nil {
				t.Error("GetSessionFromRequest() should return nil")
			}
		})
	}
}

func TestSessionManager_BearerToken(t *testing.T) {
	sm := newTestManager(t, nil)
	session := sm.CreateSession()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sm.Token(session))

	retrieved := sm.GetSessionFromRequest(req)
	if retrieved == nil {
		t.Fatal("GetSessionFromRequest() returned nil for Bearer token")
	}
	if retrieved.ID != session.ID {
		t.Errorf("Session ID = %s, want %s", retrieved.ID, session.ID)
	}

	// An unsigned id is not accepted
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	if sm.GetSessionFromRequest(req) != nil {
		t.Error("unsigned bearer token accepted")
	}
}

func TestWithSession(t *testing.T) {
	sm := newTestManager(t, nil)

	var seen *Session
	handler := WithSession(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("creates session for new caller", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/results", nil))

		if seen == nil {
			t.Fatal("Session not found in context")
		}
		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != sessionCookieName {
			t.Fatalf("expected session cookie, got %v", cookies)
		}
		if !strings.HasPrefix(cookies[0].Value, seen.ID+".") {
			t.Errorf("cookie %q does not carry session %s", cookies[0].Value, seen.ID)
		}
	})

	t.Run("reuses existing session", func(t *testing.T) {
		existing := sm.CreateSession()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/results", nil)
		req.Header.Set("Authorization", "Bearer "+sm.Token(existing))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if seen != existing {
			t.Error("middleware did not reuse the existing session")
		}
		if len(w.Result().Cookies()) != 0 {
			t.Error("cookie should not be reset for an existing session")
		}
	})
}

func TestGetSessionFromContext(t *testing.T) {
	session := NewTestSession()
	ctx := SetSessionInContext(context.Background(), session)

	if GetSessionFromContext(ctx) != session {
		t.Error("GetSessionFromContext() did not return the stored session")
	}
	if GetSessionFromContext(context.Background()) != nil {
		t.Error("GetSessionFromContext() should return nil for empty context")
	}
}

func TestSessionManager_ClearSessionCookie(t *testing.T) {
	sm := newTestManager(t, nil)

	w := httptest.NewRecorder()
	sm.ClearSessionCookie(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookieName {
		t.Fatalf("expected session cookie, got %v", cookies)
	}
	if cookies[0].MaxAge != -1 {
		t.Errorf("MaxAge = %d, want -1 (expired)", cookies[0].MaxAge)
	}
}

func TestSession_MarshalJSON(t *testing.T) {
	session := NewTestSession()
	session.ExpiresAt = time.Now().Add(24 * time.Hour)
	session.Do(func(rs *retrieval.Session) error {
		rs.SelectQuery(4)
		return nil
	})

	data, err := session.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}

	jsonStr := string(data)
	if !strings.Contains(jsonStr, `"session_id":"test-session"`) {
		t.Errorf("JSON should contain session_id, got %s", jsonStr)
	}
	if strings.Contains(jsonStr, "query") {
		t.Errorf("JSON should not contain retrieval state, got %s", jsonStr)
	}
}
