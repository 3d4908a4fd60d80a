package retrieval

import "fmt"

// Weights is either a single scalar applied to every feature or a per-feature vector.
type Weights struct {
	scalar float64
	vector []float64
}

// Uniform returns the scalar weight 1/dim.
func Uniform(dim int) Weights {
	if dim <= 0 {
		return Weights{}
	}
	return Weights{scalar: 1 / float64(dim)}
}

// Scalar returns a weight applied identically to every feature.
func Scalar(w float64) Weights {
	return Weights{scalar: w}
}

// Vector returns per-feature weights. The slice is copied.
func Vector(w []float64) Weights {
	return Weights{vector: append([]float64(nil), w...)}
}

// IsScalar reports whether the weights are a single uniform scalar.
func (w Weights) IsScalar() bool {
	return w.vector == nil
}

// ScalarValue returns the scalar weight (0 for vector weights).
func (w Weights) ScalarValue() float64 {
	return w.scalar
}

// Values expands the weights to a vector of length dim.
func (w Weights) Values(dim int) ([]float64, error) {
	if w.IsScalar() {
		out := make([]float64, dim)
		for i := range out {
			out[i] = w.scalar
		}
		return out, nil
	}
	if len(w.vector) != dim {
		return nil, fmt.Errorf("%w: %d weights for %d features", ErrDimensionMismatch, len(w.vector), dim)
	}
	return append([]float64(nil), w.vector...), nil
}

// Sum returns the total weight over dim features.
func (w Weights) Sum(dim int) float64 {
	if w.IsScalar() {
		return w.scalar * float64(dim)
	}
	var total float64
	for _, v := range w.vector {
		total += v
	}
	return total
}
