package retrieval

import (
	"errors"

	"github.com/kozaktomas/cbir/internal/features"
)

var (
	// ErrUnknownImage is returned when an image identifier has no row in the matrix.
	ErrUnknownImage = errors.New("unknown image")
	// ErrEmptyRelevantSet is returned when feedback weights are requested without relevant images.
	ErrEmptyRelevantSet = errors.New("relevant image set is empty")
	// ErrUnknownMethod is returned for a retrieval method that is not configured.
	ErrUnknownMethod = errors.New("unknown retrieval method")
	// ErrFeedbackUnsupported is returned when feedback is submitted for a method without feedback.
	ErrFeedbackUnsupported = errors.New("method does not support relevance feedback")
	// ErrNoQuery is returned when a session is run before a query image and method are selected.
	ErrNoQuery = errors.New("no query image or method selected")
	// ErrNoResults is returned when feedback is submitted before any ranking exists.
	ErrNoResults = errors.New("no ranking to refine")
	// ErrNotReady is returned when the engine has no corpus snapshot loaded.
	ErrNotReady = errors.New("corpus not loaded")
	// ErrDimensionMismatch is returned when compared vectors have different lengths.
	ErrDimensionMismatch = features.ErrDimensionMismatch
)
