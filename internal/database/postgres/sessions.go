package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/lib/pq"
)

// SessionRepository provides PostgreSQL-backed interaction session storage
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Save stores a session in the database
func (r *SessionRepository) Save(ctx context.Context, id string, state retrieval.SessionState, createdAt, expiresAt time.Time) error {
	query := `
		INSERT INTO feedback_sessions (id, query_id, method, state, relevant, round, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			query_id = EXCLUDED.query_id,
			method = EXCLUDED.method,
			state = EXCLUDED.state,
			relevant = EXCLUDED.relevant,
			round = EXCLUDED.round,
			expires_at = EXCLUDED.expires_at
	`

	_, err := r.pool.Exec(ctx, query,
		id, state.QueryID, string(state.Method), string(state.State),
		pq.Array(toInt64s(state.Relevant)), state.Round, createdAt, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID, returns nil if not found or expired
func (r *SessionRepository) Get(ctx context.Context, id string) (*database.StoredSession, error) {
	query := `
		SELECT id, query_id, method, state, relevant, round, created_at, expires_at
		FROM feedback_sessions
		WHERE id = $1 AND expires_at > NOW()
	`

	var (
		s        database.StoredSession
		method   string
		state    string
		relevant []int64
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.State.QueryID,
		&method,
		&state,
		pq.Array(&relevant),
		&s.State.Round,
		&s.CreatedAt,
		&s.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s.State.Method = retrieval.Method(method)
	s.State.State = retrieval.State(state)
	s.State.Relevant = toInts(relevant)
	return &s, nil
}

// Delete removes a session from the database
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM feedback_sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count deleted
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM feedback_sessions WHERE expires_at <= NOW()")
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

func toInt64s(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

func toInts(v []int64) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
