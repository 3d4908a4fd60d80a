package retrieval

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/metrics"
)

// Ranking sources reported by Engine.Rank.
const (
	SourceCache    = "cache"
	SourceComputed = "computed"
)

// Snapshot is an immutable view of the indexed corpus.
type Snapshot struct {
	Features   *features.Matrix            // raw histogram fractions
	Normalized *features.Matrix            // z-score normalized features
	Paths      map[int]string              // display path per image
	Rankings   map[Method]map[int][]Result // optional precomputed rankings per method
	BuiltAt    time.Time
}

// loaded is a snapshot with the per-method feature spaces resolved.
type loaded struct {
	snap   *Snapshot
	spaces map[Method]*features.Matrix
}

// Engine serves rankings from the current snapshot. Snapshots are swapped
// atomically, so a rebuild never exposes a partially loaded corpus.
type Engine struct {
	methods []MethodSpec
	byName  map[Method]MethodSpec
	current atomic.Pointer[loaded]
}

// NewEngine creates an engine for the given methods. The snapshot may be nil
// and loaded later with Swap.
func NewEngine(methods []MethodSpec, snap *Snapshot) (*Engine, error) {
	e := &Engine{
		methods: append([]MethodSpec(nil), methods...),
		byName:  make(map[Method]MethodSpec, len(methods)),
	}
	for _, m := range methods {
		e.byName[m.Name] = m
	}
	if snap != nil {
		if err := e.Swap(snap); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Swap validates and installs a new snapshot.
func (e *Engine) Swap(snap *Snapshot) error {
	if snap.Features == nil || snap.Normalized == nil {
		return fmt.Errorf("snapshot is missing a feature matrix")
	}
	if snap.Features.Len() != snap.Normalized.Len() || snap.Features.Dim() != snap.Normalized.Dim() {
		return fmt.Errorf("%w: raw %dx%d vs normalized %dx%d", ErrDimensionMismatch,
			snap.Features.Len(), snap.Features.Dim(), snap.Normalized.Len(), snap.Normalized.Dim())
	}

	spaces := make(map[Method]*features.Matrix, len(e.methods))
	for _, m := range e.methods {
		src := snap.Features
		if m.Normalized {
			src = snap.Normalized
		}
		if m.From == 0 && m.To == src.Dim() {
			spaces[m.Name] = src
			continue
		}
		space, err := src.Slice(m.From, m.To)
		if err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
		spaces[m.Name] = space
	}

	e.current.Store(&loaded{snap: snap, spaces: spaces})
	metrics.CorpusImages.Set(float64(snap.Features.Len()))
	return nil
}

// Snapshot returns the current snapshot, or nil before the first Swap.
func (e *Engine) Snapshot() *Snapshot {
	if l := e.current.Load(); l != nil {
		return l.snap
	}
	return nil
}

// Methods returns the configured methods in catalogue order.
func (e *Engine) Methods() []MethodSpec {
	return append([]MethodSpec(nil), e.methods...)
}

// Method returns the definition of a method.
func (e *Engine) Method(name Method) (MethodSpec, error) {
	m, ok := e.byName[name]
	if !ok {
		return MethodSpec{}, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return m, nil
}

// Space returns the feature matrix a method ranks in.
func (e *Engine) Space(name Method) (*features.Matrix, error) {
	l := e.current.Load()
	if l == nil {
		return nil, ErrNotReady
	}
	space, ok := l.spaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return space, nil
}

// Rank returns the uniform-weight ranking for a query, served from the
// precomputed rankings when the snapshot carries them.
func (e *Engine) Rank(name Method, queryID int) ([]Result, string, error) {
	l := e.current.Load()
	if l == nil {
		return nil, "", ErrNotReady
	}
	space, ok := l.spaces[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	if !space.Has(queryID) {
		return nil, "", fmt.Errorf("%w: %d", ErrUnknownImage, queryID)
	}

	if cached, ok := l.snap.Rankings[name][queryID]; ok && coversSpace(cached, space, queryID) {
		metrics.RankingsTotal.WithLabelValues(string(name), SourceCache).Inc()
		return append([]Result(nil), cached...), SourceCache, nil
	}

	start := time.Now()
	results, err := Rank(space, queryID, Uniform(space.Dim()))
	if err != nil {
		return nil, "", err
	}
	metrics.RankingDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())
	metrics.RankingsTotal.WithLabelValues(string(name), SourceComputed).Inc()
	return results, SourceComputed, nil
}

// coversSpace reports whether a cached ranking lists every image of the
// space except the query, each exactly once.
func coversSpace(cached []Result, space *features.Matrix, queryID int) bool {
	if len(cached) != space.Len()-1 {
		return false
	}
	seen := make(map[int]struct{}, len(cached))
	for _, r := range cached {
		if r.ImageID == queryID || !space.Has(r.ImageID) {
			return false
		}
		if _, dup := seen[r.ImageID]; dup {
			return false
		}
		seen[r.ImageID] = struct{}{}
	}
	return true
}

// Feedback re-ranks a query with weights derived from the relevant images.
func (e *Engine) Feedback(name Method, queryID int, relevant []int) ([]Result, Weights, error) {
	spec, err := e.Method(name)
	if err != nil {
		return nil, Weights{}, err
	}
	if !spec.Feedback {
		return nil, Weights{}, fmt.Errorf("%w: %s", ErrFeedbackUnsupported, name)
	}
	space, err := e.Space(name)
	if err != nil {
		return nil, Weights{}, err
	}

	start := time.Now()
	results, w, err := Feedback(space, queryID, relevant)
	if err != nil {
		return nil, Weights{}, err
	}
	metrics.RankingDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())
	metrics.FeedbackRoundsTotal.WithLabelValues(string(name)).Inc()
	return results, w, nil
}
