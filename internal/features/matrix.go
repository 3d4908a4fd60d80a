// Package features builds the corpus feature matrix and its z-score normalization.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrDimensionMismatch is returned when feature vectors of different lengths meet.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
	// ErrEmptyCorpus is returned when a matrix would have no rows.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrDuplicateImage is returned when an image identifier appears twice.
	ErrDuplicateImage = errors.New("duplicate image identifier")
)

// Matrix is an immutable feature matrix: one row per image, one column per feature.
// Rows are ordered by ascending image identifier.
type Matrix struct {
	ids     []int
	columns []string
	rows    [][]float64
	index   map[int]int
}

// New creates a matrix from parallel id and row slices. Rows are copied and
// reordered by ascending identifier.
func New(ids []int, columns []string, rows [][]float64) (*Matrix, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyCorpus
	}
	if len(ids) != len(rows) {
		return nil, fmt.Errorf("%w: %d ids for %d rows", ErrDimensionMismatch, len(ids), len(rows))
	}

	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return ids[order[a]] < ids[order[b]] })

	m := &Matrix{
		ids:     make([]int, len(ids)),
		columns: append([]string(nil), columns...),
		rows:    make([][]float64, len(rows)),
		index:   make(map[int]int, len(ids)),
	}
	for pos, src := range order {
		id := ids[src]
		if _, dup := m.index[id]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateImage, id)
		}
		if len(rows[src]) != len(columns) {
			return nil, fmt.Errorf("%w: image %d has %d features, expected %d",
				ErrDimensionMismatch, id, len(rows[src]), len(columns))
		}
		m.ids[pos] = id
		m.rows[pos] = append([]float64(nil), rows[src]...)
		m.index[id] = pos
	}
	return m, nil
}

// Build creates the corpus matrix from per-image feature vectors.
func Build(vectors map[int][]float64, columns []string) (*Matrix, error) {
	ids := make([]int, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := make([][]float64, len(ids))
	for i, id := range ids {
		rows[i] = vectors[id]
	}
	return New(ids, columns, rows)
}

// Len returns the number of rows (images).
func (m *Matrix) Len() int { return len(m.ids) }

// Dim returns the number of columns (features).
func (m *Matrix) Dim() int { return len(m.columns) }

// IDs returns the image identifiers in row order.
func (m *Matrix) IDs() []int { return append([]int(nil), m.ids...) }

// Columns returns the feature column names.
func (m *Matrix) Columns() []string { return append([]string(nil), m.columns...) }

// Has reports whether the matrix holds a row for the image.
func (m *Matrix) Has(id int) bool {
	_, ok := m.index[id]
	return ok
}

// Row returns the feature vector of an image. The returned slice must not be modified.
func (m *Matrix) Row(id int) ([]float64, bool) {
	pos, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return m.rows[pos], true
}

// RowAt returns the identifier and feature vector at a row position.
func (m *Matrix) RowAt(pos int) (int, []float64) {
	return m.ids[pos], m.rows[pos]
}

// Column returns a copy of one feature column across all rows.
func (m *Matrix) Column(col int) []float64 {
	out := make([]float64, len(m.rows))
	for i, row := range m.rows {
		out[i] = row[col]
	}
	return out
}

// Slice returns the sub-matrix holding columns [from, to).
func (m *Matrix) Slice(from, to int) (*Matrix, error) {
	if from < 0 || to > m.Dim() || from >= to {
		return nil, fmt.Errorf("%w: column range [%d,%d) outside %d features", ErrDimensionMismatch, from, to, m.Dim())
	}
	rows := make([][]float64, len(m.rows))
	for i, row := range m.rows {
		rows[i] = row[from:to]
	}
	return New(m.ids, m.columns[from:to], rows)
}

// Validate checks that every value of the matrix is finite.
func (m *Matrix) Validate() error {
	for pos, row := range m.rows {
		for c, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("image %d column %s: non-finite value %v", m.ids[pos], m.columns[c], v)
			}
		}
	}
	return nil
}
