package retrieval

import (
	"fmt"
	"math"
	"sort"

	"github.com/kozaktomas/cbir/internal/features"
)

// Result is one ranked image.
type Result struct {
	ImageID  int     `json:"image_id"`
	Distance float64 `json:"distance"`
}

// WeightedL1 computes sum(w[f] * |a[f] - b[f]|). Vectors of different length
// are a structural error; no partial comparison is attempted.
func WeightedL1(a, b []float64, w Weights) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d features", ErrDimensionMismatch, len(a), len(b))
	}
	if !w.IsScalar() && len(w.vector) != len(a) {
		return 0, fmt.Errorf("%w: %d weights for %d features", ErrDimensionMismatch, len(w.vector), len(a))
	}

	var distance float64
	for i := range a {
		weight := w.scalar
		if !w.IsScalar() {
			weight = w.vector[i]
		}
		distance += weight * math.Abs(a[i]-b[i])
	}
	return distance, nil
}

// Rank computes the weighted L1 distance from the query to every other image
// of the matrix. Results are ascending by distance, ties broken by ascending
// image identifier; the query itself is excluded.
func Rank(m *features.Matrix, queryID int, w Weights) ([]Result, error) {
	query, ok := m.Row(queryID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownImage, queryID)
	}

	results := make([]Result, 0, m.Len()-1)
	for pos := range m.Len() {
		id, row := m.RowAt(pos)
		if id == queryID {
			continue
		}
		d, err := WeightedL1(query, row, w)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", id, err)
		}
		results = append(results, Result{ImageID: id, Distance: d})
	}

	SortResults(results)
	return results, nil
}

// SortResults orders results by distance, then by image identifier.
func SortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ImageID < results[j].ImageID
	})
}
