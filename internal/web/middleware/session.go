package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/metrics"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

const (
	sessionCookieName = "cbir_session"
	sessionDuration   = 24 * time.Hour
	cleanupInterval   = 10 * time.Minute
)

// Session is one browser's interaction with the retrieval engine.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	mu        sync.Mutex
	retrieval *retrieval.Session
}

// Do runs fn with exclusive access to the retrieval session.
func (s *Session) Do(fn func(rs *retrieval.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.retrieval)
}

// SessionManager handles session creation, lookup and persistence
type SessionManager struct {
	secret   []byte
	sessions map[string]*Session
	mu       sync.RWMutex
	store    database.SessionStore
	engine   *retrieval.Engine
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a new session manager. store may be nil, in
// which case sessions live in memory only.
func NewSessionManager(secret string, store database.SessionStore, engine *retrieval.Engine) *SessionManager {
	// Use a default secret if none provided (for development)
	if secret == "" {
		secret = "cbir-dev-secret-change-in-production"
	}
	sm := &SessionManager{
		secret:   []byte(secret),
		sessions: make(map[string]*Session),
		store:    store,
		engine:   engine,
		stopCh:   make(chan struct{}),
	}
	go sm.cleanupLoop()
	return sm
}

// CreateSession creates a new session with no query selected
func (sm *SessionManager) CreateSession() *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(sessionDuration),
		retrieval: retrieval.NewSession(),
	}

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
	sm.mu.Unlock()

	return session
}

// GetSession retrieves a session by ID, restoring it from the store when it
// is not in memory.
func (sm *SessionManager) GetSession(ctx context.Context, sessionID string) *Session {
	sm.mu.RLock()
	session, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if ok {
		if time.Now().After(session.ExpiresAt) {
			sm.DeleteSession(ctx, sessionID)
			return nil
		}
		return session
	}

	return sm.restore(ctx, sessionID)
}

func (sm *SessionManager) restore(ctx context.Context, sessionID string) *Session {
	if sm.store == nil {
		return nil
	}
	stored, err := sm.store.Get(ctx, sessionID)
	if err != nil {
		log.Printf("Failed to load session: %v", err)
		return nil
	}
	if stored == nil {
		return nil
	}

	rs, err := retrieval.RestoreSession(stored.State, sm.engine)
	if err != nil {
		// The corpus may have changed since the session was saved.
		log.Printf("Failed to restore session state, starting fresh: %v", err)
		rs = retrieval.NewSession()
	}

	session := &Session{
		ID:        stored.ID,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
		retrieval: rs,
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if existing, ok := sm.sessions[sessionID]; ok {
		return existing
	}
	sm.sessions[sessionID] = session
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
	return session
}

// Persist saves the session state when a store is configured.
func (sm *SessionManager) Persist(ctx context.Context, session *Session) {
	if sm.store == nil {
		return
	}
	session.mu.Lock()
	state := session.retrieval.Export()
	session.mu.Unlock()

	if err := sm.store.Save(ctx, session.ID, state, session.CreatedAt, session.ExpiresAt); err != nil {
		log.Printf("Failed to persist session: %v", err)
	}
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(ctx context.Context, sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
	sm.mu.Unlock()

	if sm.store != nil {
		if err := sm.store.Delete(ctx, sessionID); err != nil {
			log.Printf("Failed to delete session: %v", err)
		}
	}
}

// Count returns the number of sessions held in memory
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Stop stops the cleanup goroutine
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stopCh) })
}

func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stopCh:
			return
		case <-ticker.C:
			sm.cleanupExpired(context.Background())
		}
	}
}

// cleanupExpired drops expired sessions from memory and from the store
func (sm *SessionManager) cleanupExpired(ctx context.Context) {
	now := time.Now()

	sm.mu.Lock()
	for id, s := range sm.sessions {
		if now.After(s.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
	sm.mu.Unlock()

	if sm.store != nil {
		n, err := sm.store.DeleteExpired(ctx)
		if err != nil {
			log.Printf("Failed to delete expired sessions: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Deleted %d expired sessions", n)
		}
	}
}

// SetSessionCookie sets the session cookie on the response
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sm.Token(session),
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionDuration.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// GetSessionFromRequest extracts the session from the signed cookie or an
// "Authorization: Bearer <id>.<signature>" header.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	var value string
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		value = cookie.Value
	} else if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		value = strings.TrimPrefix(auth, "Bearer ")
	}
	if value == "" {
		return nil
	}

	sessionID, signature, ok := strings.Cut(value, ".")
	if !ok || !sm.verifySignature(sessionID, signature) {
		return nil
	}
	return sm.GetSession(r.Context(), sessionID)
}

// Token returns the signed value identifying a session in cookies and bearer headers
func (sm *SessionManager) Token(session *Session) string {
	return session.ID + "." + sm.signData(session.ID)
}

// signData creates an HMAC signature for data
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// SessionData is a helper struct for JSON responses
type SessionData struct {
	SessionID string `json:"session_id"`
	ExpiresAt string `json:"expires_at"`
}

// MarshalJSON implements json.Marshaler (excludes the retrieval state)
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(SessionData{
		SessionID: s.ID,
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
	})
}
