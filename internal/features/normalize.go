package features

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnStats holds per-column mean and sample standard deviation.
type ColumnStats struct {
	Mean []float64
	Std  []float64
}

// ComputeStats computes column statistics over the given rows. Rows must
// have equal length. A column whose values are all equal (including the
// single-row case) has std exactly 0 and mean exactly that value.
func ComputeStats(rows [][]float64) ColumnStats {
	if len(rows) == 0 {
		return ColumnStats{}
	}
	dim := len(rows[0])
	s := ColumnStats{Mean: make([]float64, dim), Std: make([]float64, dim)}

	col := make([]float64, len(rows))
	for c := range dim {
		for r, row := range rows {
			col[r] = row[c]
		}
		if floats.Min(col) == floats.Max(col) {
			s.Mean[c] = col[0]
			continue
		}
		s.Mean[c], s.Std[c] = stat.MeanStdDev(col, nil)
	}
	return s
}

// Stats computes the column statistics of the whole matrix.
func Stats(m *Matrix) ColumnStats {
	return ComputeStats(m.rows)
}

// Normalize applies per-column z-score normalization. Columns with zero std
// carry no discriminative power and are mapped to 0 instead of NaN.
func Normalize(m *Matrix) (*Matrix, ColumnStats) {
	s := Stats(m)

	rows := make([][]float64, len(m.rows))
	for i, row := range m.rows {
		out := make([]float64, len(row))
		for c, v := range row {
			if s.Std[c] == 0 {
				continue
			}
			out[c] = (v - s.Mean[c]) / s.Std[c]
		}
		rows[i] = out
	}

	return &Matrix{
		ids:     m.ids,
		columns: m.columns,
		rows:    rows,
		index:   m.index,
	}, s
}
