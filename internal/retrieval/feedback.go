package retrieval

import (
	"fmt"
	"sort"

	"github.com/kozaktomas/cbir/internal/constants"
	"github.com/kozaktomas/cbir/internal/features"
)

// UpdateWeights derives per-feature weights from the images marked relevant.
//
// Features on which the relevant images vary little get high weight (1/std).
// A feature with zero std but non-zero mean is the most discriminative one:
// its std is replaced by half the smallest non-zero std. A feature with zero
// std and zero mean gets weight 0. The weights sum to 1.
func UpdateWeights(relevant []int, m *features.Matrix) (Weights, error) {
	ids := uniqueIDs(relevant)
	if len(ids) == 0 {
		return Weights{}, ErrEmptyRelevantSet
	}

	rows := make([][]float64, 0, len(ids))
	for _, id := range ids {
		row, ok := m.Row(id)
		if !ok {
			return Weights{}, fmt.Errorf("%w: %d", ErrUnknownImage, id)
		}
		rows = append(rows, row)
	}

	stats := features.ComputeStats(rows)
	std := substituteZeroStd(stats.Std, stats.Mean)

	raw := make([]float64, len(std))
	var total float64
	for i, s := range std {
		if s != 0 {
			raw[i] = 1 / s
			total += raw[i]
		}
	}

	// Every feature is zero on every relevant image.
	if total == 0 {
		return Vector(uniformVector(len(raw))), nil
	}

	for i := range raw {
		raw[i] /= total
	}
	return Weights{vector: raw}, nil
}

// substituteZeroStd replaces the std of features the relevant set agrees on
// (zero std, non-zero mean). Without any non-zero std the smallest is taken as 1.
func substituteZeroStd(std, mean []float64) []float64 {
	out := append([]float64(nil), std...)

	minNonZero := 0.0
	for _, s := range std {
		if s != 0 && (minNonZero == 0 || s < minNonZero) {
			minNonZero = s
		}
	}
	if minNonZero == 0 {
		minNonZero = 1
	}

	for i, s := range std {
		if s == 0 && mean[i] != 0 {
			out[i] = constants.ZeroStdFactor * minNonZero
		}
	}
	return out
}

// Feedback re-weights features from the relevant images and re-ranks the
// whole matrix against the original query.
func Feedback(m *features.Matrix, queryID int, relevant []int) ([]Result, Weights, error) {
	w, err := UpdateWeights(relevant, m)
	if err != nil {
		return nil, Weights{}, err
	}
	results, err := Rank(m, queryID, w)
	if err != nil {
		return nil, Weights{}, err
	}
	return results, w, nil
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func uniformVector(dim int) []float64 {
	out := make([]float64, dim)
	for i := range out {
		out[i] = 1 / float64(dim)
	}
	return out
}
