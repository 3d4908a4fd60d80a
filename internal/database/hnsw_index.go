package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// ErrIndexNotBuilt is returned when the neighbor index is searched before Build.
var ErrIndexNotBuilt = errors.New("neighbor index not built")

// L1Distance is the uniform-weight Manhattan distance used by the HNSW graph:
// the mean absolute difference over all features.
func L1Distance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return float32(len(a) + len(b))
	}
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float32(len(a))
}

// NeighborIndex wraps an HNSW graph over a feature matrix for fast
// approximate nearest-neighbor previews. Exact rankings use retrieval.Rank.
type NeighborIndex struct {
	graph  *hnsw.Graph[int]
	matrix *features.Matrix
	mu     sync.RWMutex
}

// NewNeighborIndex creates a new empty index.
func NewNeighborIndex() *NeighborIndex {
	return &NeighborIndex{}
}

// Build (re)builds the index from every row of the matrix.
func (n *NeighborIndex) Build(m *features.Matrix) error {
	if m == nil || m.Len() == 0 {
		return fmt.Errorf("build neighbor index: %w", features.ErrEmptyCorpus)
	}

	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = L1Distance

	for pos := range m.Len() {
		id, row := m.RowAt(pos)
		g.Add(hnsw.MakeNode(id, toFloat32(row)))
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.graph = g
	n.matrix = m
	return nil
}

// Len returns the number of indexed images.
func (n *NeighborIndex) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.graph == nil {
		return 0
	}
	return n.graph.Len()
}

// Neighbors returns up to k approximate nearest neighbors of an indexed
// image, excluding the image itself. Distances are recomputed exactly with
// the uniform weight so they are comparable with full rankings.
func (n *NeighborIndex) Neighbors(id, k int) ([]retrieval.Result, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.graph == nil {
		return nil, ErrIndexNotBuilt
	}
	query, ok := n.matrix.Row(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", retrieval.ErrUnknownImage, id)
	}
	if k <= 0 {
		return []retrieval.Result{}, nil
	}

	// One extra candidate because the query is its own nearest neighbor.
	nodes := n.graph.Search(toFloat32(query), k+1)

	w := retrieval.Uniform(n.matrix.Dim())
	results := make([]retrieval.Result, 0, len(nodes))
	for _, node := range nodes {
		if node.Key == id {
			continue
		}
		row, ok := n.matrix.Row(node.Key)
		if !ok {
			continue
		}
		d, err := retrieval.WeightedL1(query, row, w)
		if err != nil {
			return nil, err
		}
		results = append(results, retrieval.Result{ImageID: node.Key, Distance: d})
	}

	retrieval.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
