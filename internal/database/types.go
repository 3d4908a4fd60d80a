package database

import (
	"errors"
	"time"

	"github.com/kozaktomas/cbir/internal/histogram"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// ErrNotFound is returned when a stored artefact does not exist yet.
var ErrNotFound = errors.New("not found")

// MatrixKind names a persisted feature matrix.
type MatrixKind string

const (
	// MatrixFeatures holds the raw histogram fractions.
	MatrixFeatures MatrixKind = "features"
	// MatrixNormalized holds the z-score normalized features.
	MatrixNormalized MatrixKind = "normalized"
)

// StoredHistogram is the extracted histogram pair of one image.
type StoredHistogram struct {
	ImageID    int                  `json:"image_id"`
	Path       string               `json:"path"`
	Histograms histogram.Histograms `json:"histograms"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Rankings maps a query image to its full uniform-weight ranking.
type Rankings map[int][]retrieval.Result

// StoredSession is a persisted interaction session.
type StoredSession struct {
	ID        string
	State     retrieval.SessionState
	CreatedAt time.Time
	ExpiresAt time.Time
}
