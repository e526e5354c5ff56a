package predictor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres each column on its mean and divides by its population
// standard deviation. Constant columns are divided by 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler learns column statistics from x
func FitScaler(x [][]float64) (*StandardScaler, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on an empty matrix")
	}
	width := len(x[0])
	if width == 0 {
		return nil, fmt.Errorf("cannot fit scaler on zero-width rows")
	}
	data := make([]float64, 0, len(x)*width)
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
		data = append(data, row...)
	}
	m := mat.NewDense(len(x), width, data)

	s := &StandardScaler{Mean: make([]float64, width), Scale: make([]float64, width)}
	col := make([]float64, len(x))
	for j := 0; j < width; j++ {
		mat.Col(col, j, m)
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Mean[j] = mean
		s.Scale[j] = math.Sqrt(variance)
		if s.Scale[j] < 1e-12 {
			s.Scale[j] = 1
		}
	}
	return s, nil
}

// Width is the number of columns the scaler was fitted on
func (s *StandardScaler) Width() int {
	return len(s.Mean)
}

// Transform scales a single row
func (s *StandardScaler) Transform(row []float64) ([]float64, error) {
	if len(row) != s.Width() {
		return nil, fmt.Errorf("scaler expects %d features, got %d", s.Width(), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformAll scales every row of x
func (s *StandardScaler) TransformAll(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		r, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}
