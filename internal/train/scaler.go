package train

import (
	"fmt"
	"math"
)

// StandardScaler centers each column to zero mean and unit variance.
// Fitted parameters serialize to JSON so inference reuses the training
// normalization exactly.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit computes per-column mean and standard deviation. Constant columns
// get a unit std so Transform stays finite.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("scaler: empty matrix")
	}
	cols := len(x[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)

	for j := 0; j < cols; j++ {
		var sum float64
		for i := range x {
			sum += x[i][j]
		}
		mean := sum / float64(len(x))

		var ss float64
		for i := range x {
			d := x[i][j] - mean
			ss += d * d
		}
		std := math.Sqrt(ss / float64(len(x)))
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return nil
}

// Transform scales a matrix in place-compatible copy form.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i := range x {
		row, err := s.TransformRow(x[i])
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

// TransformRow scales a single feature vector.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scaler: expected %d features, got %d", len(s.Mean), len(row))
	}
	out := make([]float64, len(row))
	for j := range row {
		out[j] = (row[j] - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}
