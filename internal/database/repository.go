package database

import (
	"context"
	"time"

	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// CorpusReader provides read-only access to the indexed corpus
type CorpusReader interface {
	// LoadHistograms returns the histograms of all images ordered by image ID
	LoadHistograms(ctx context.Context) ([]StoredHistogram, error)
	// LoadMatrix returns a persisted feature matrix, ErrNotFound if it was never saved
	LoadMatrix(ctx context.Context, kind MatrixKind) (*features.Matrix, error)
	// LoadRankings returns the precomputed rankings of a method, ErrNotFound if absent
	LoadRankings(ctx context.Context, method retrieval.Method) (Rankings, error)
	// Count returns the number of indexed images
	Count(ctx context.Context) (int, error)
}

// CorpusWriter provides write access to the indexed corpus. Every save
// replaces the previous artefact as a whole.
type CorpusWriter interface {
	CorpusReader

	SaveHistograms(ctx context.Context, histograms []StoredHistogram) error
	SaveMatrix(ctx context.Context, kind MatrixKind, m *features.Matrix) error
	SaveRankings(ctx context.Context, method retrieval.Method, rankings Rankings) error
	// ClearRankings drops the precomputed rankings of every method
	ClearRankings(ctx context.Context) error
}

// SessionStore persists interaction sessions across server restarts
type SessionStore interface {
	Save(ctx context.Context, id string, state retrieval.SessionState, createdAt, expiresAt time.Time) error
	// Get returns nil when the session does not exist or has expired
	Get(ctx context.Context, id string) (*StoredSession, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
