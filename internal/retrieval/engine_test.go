package retrieval

import (
	"errors"
	"testing"

	"github.com/kozaktomas/cbir/internal/features"
)

func TestEngine_NotReady(t *testing.T) {
	e, err := NewEngine(DefaultMethods(), nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if e.Snapshot() != nil {
		t.Error("expected nil snapshot before Swap")
	}
	if _, _, err := e.Rank(MethodIntensity, 1); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestEngine_RankPerMethod(t *testing.T) {
	e := newTestEngine(t, 8)

	for _, m := range e.Methods() {
		t.Run(string(m.Name), func(t *testing.T) {
			results, source, err := e.Rank(m.Name, 3)
			if err != nil {
				t.Fatalf("Rank() error = %v", err)
			}
			if source != SourceComputed {
				t.Errorf("source = %s, want %s", source, SourceComputed)
			}
			if len(results) != 7 {
				t.Errorf("expected 7 results, got %d", len(results))
			}

			space, _ := e.Space(m.Name)
			if space.Dim() != m.Dim() {
				t.Errorf("space dim = %d, want %d", space.Dim(), m.Dim())
			}
		})
	}
}

func TestEngine_IntensityUsesRawColumns(t *testing.T) {
	e := newTestEngine(t, 5)
	snap := e.Snapshot()

	raw, err := snap.Features.Slice(0, 26)
	if err != nil {
		t.Fatalf("Slice() error = %v", err)
	}
	want, err := Rank(raw, 2, Uniform(26))
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	got, _, err := e.Rank(MethodIntensity, 2)
	if err != nil {
		t.Fatalf("Engine.Rank() error = %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEngine_ServesCachedRankings(t *testing.T) {
	e := newTestEngine(t, 4)
	snap := *e.Snapshot()

	cached := []Result{{ImageID: 4, Distance: 0.1}, {ImageID: 3, Distance: 0.2}, {ImageID: 2, Distance: 0.3}}
	snap.Rankings = map[Method]map[int][]Result{MethodColorCode: {1: cached}}
	if err := e.Swap(&snap); err != nil {
		t.Fatalf("Swap() error = %v", err)
	}

	results, source, err := e.Rank(MethodColorCode, 1)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if source != SourceCache {
		t.Errorf("source = %s, want %s", source, SourceCache)
	}
	if results[0].ImageID != 4 {
		t.Errorf("expected cached ranking, got %+v", results)
	}

	// a query without a cache entry is computed
	if _, source, _ := e.Rank(MethodColorCode, 2); source != SourceComputed {
		t.Errorf("source = %s, want %s", source, SourceComputed)
	}
}

func TestEngine_IgnoresCacheNotCoveringCorpus(t *testing.T) {
	tests := []struct {
		name   string
		cached []Result
	}{
		{"unknown image", []Result{{ImageID: 4}, {ImageID: 3}, {ImageID: 99}}},
		{"duplicate image", []Result{{ImageID: 4}, {ImageID: 3}, {ImageID: 3}}},
		{"contains query", []Result{{ImageID: 1}, {ImageID: 3}, {ImageID: 2}}},
		{"too short", []Result{{ImageID: 4}, {ImageID: 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, 4)
			snap := *e.Snapshot()
			snap.Rankings = map[Method]map[int][]Result{MethodColorCode: {1: tt.cached}}
			if err := e.Swap(&snap); err != nil {
				t.Fatalf("Swap() error = %v", err)
			}

			results, source, err := e.Rank(MethodColorCode, 1)
			if err != nil {
				t.Fatalf("Rank() error = %v", err)
			}
			if source != SourceComputed {
				t.Errorf("source = %s, want %s", source, SourceComputed)
			}
			space, _ := e.Space(MethodColorCode)
			want, _ := Rank(space, 1, Uniform(space.Dim()))
			for i := range want {
				if results[i] != want[i] {
					t.Fatalf("result %d = %+v, want %+v", i, results[i], want[i])
				}
			}
		})
	}
}

func TestEngine_Errors(t *testing.T) {
	e := newTestEngine(t, 4)

	if _, _, err := e.Rank("texture", 1); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod, got %v", err)
	}
	if _, _, err := e.Rank(MethodIntensity, 99); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("expected ErrUnknownImage, got %v", err)
	}
	if _, _, err := e.Feedback(MethodIntensity, 1, []int{2}); !errors.Is(err, ErrFeedbackUnsupported) {
		t.Errorf("expected ErrFeedbackUnsupported, got %v", err)
	}
	if _, _, err := e.Feedback(MethodFeedback, 1, nil); !errors.Is(err, ErrEmptyRelevantSet) {
		t.Errorf("expected ErrEmptyRelevantSet, got %v", err)
	}
}

func TestEngine_SwapRejectsMismatchedMatrices(t *testing.T) {
	e := newTestEngine(t, 4)
	other := newTestSnapshot(t, 5)

	bad := &Snapshot{Features: e.Snapshot().Features, Normalized: other.Normalized}
	if err := e.Swap(bad); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if err := e.Swap(&Snapshot{}); err == nil {
		t.Error("expected error for empty snapshot")
	}
	if e.Snapshot().Features.Len() != 4 {
		t.Error("failed swap must keep the previous snapshot")
	}
}

func newTestSnapshot(t *testing.T, n int) *Snapshot {
	t.Helper()
	rows := corpusRows(n)
	cols := make([]string, 90)
	for i := range cols {
		cols[i] = "f"
	}
	raw, err := features.Build(rows, cols)
	if err != nil {
		t.Fatalf("failed to build matrix: %v", err)
	}
	normalized, _ := features.Normalize(raw)
	return &Snapshot{Features: raw, Normalized: normalized}
}

func newTestEngine(t *testing.T, n int) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultMethods(), newTestSnapshot(t, n))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}
