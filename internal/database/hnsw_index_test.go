package database

import (
	"errors"
	"testing"

	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

func TestL1Distance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{0.5, 0.5}, []float32{0.5, 0.5}, 0},
		{"mean absolute difference", []float32{0, 1}, []float32{1, 0}, 1},
		{"single feature", []float32{0.25}, []float32{0.75}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := L1Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("L1Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeighborIndex_NotBuilt(t *testing.T) {
	idx := NewNeighborIndex()
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", idx.Len())
	}
	if _, err := idx.Neighbors(1, 3); !errors.Is(err, ErrIndexNotBuilt) {
		t.Errorf("expected ErrIndexNotBuilt, got %v", err)
	}
}

func TestNeighborIndex_FindsClosestImages(t *testing.T) {
	m, err := features.Build(map[int][]float64{
		1: {0, 0},
		2: {0.1, 0},
		3: {0.2, 0.1},
		4: {5, 5},
		5: {6, 5},
	}, []string{"x", "y"})
	if err != nil {
		t.Fatalf("failed to build matrix: %v", err)
	}

	idx := NewNeighborIndex()
	if err := idx.Build(m); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if idx.Len() != 5 {
		t.Errorf("Len() = %d, want 5", idx.Len())
	}

	results, err := idx.Neighbors(1, 2)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(results))
	}
	if results[0].ImageID != 2 || results[1].ImageID != 3 {
		t.Errorf("neighbors = %+v, want images 2 and 3", results)
	}

	exact, err := retrieval.Rank(m, 1, retrieval.Uniform(2))
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if results[0].Distance != exact[0].Distance {
		t.Errorf("distance = %v, want exact %v", results[0].Distance, exact[0].Distance)
	}

	if _, err := idx.Neighbors(99, 2); !errors.Is(err, retrieval.ErrUnknownImage) {
		t.Errorf("expected ErrUnknownImage, got %v", err)
	}
}

func TestNeighborIndex_BuildEmpty(t *testing.T) {
	if err := NewNeighborIndex().Build(nil); !errors.Is(err, features.ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus, got %v", err)
	}
}
