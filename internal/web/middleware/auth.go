package middleware

import (
	"context"
	"net/http"

	"github.com/kozaktomas/cbir/internal/retrieval"
)

type contextKey string

const sessionContextKey contextKey = "session"

// WithSession is middleware that attaches the caller's session to the
// request context, creating a new session and cookie for first-time callers.
func WithSession(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sm.GetSessionFromRequest(r)
			if session == nil {
				session = sm.CreateSession()
				sm.SetSessionCookie(w, session)
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *Session {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return session
}

// SetSessionInContext adds a session to the context.
// This is primarily for testing - use WithSession middleware in production.
func SetSessionInContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// NewTestSession returns a fresh session that is not tracked by any manager.
func NewTestSession() *Session {
	return &Session{ID: "test-session", retrieval: retrieval.NewSession()}
}
