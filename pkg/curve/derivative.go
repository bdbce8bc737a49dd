package curve

import "github.com/pcran/pcran/pkg/types"

// Derivative returns the first-order forward difference of c, placed at the
// midpoints of consecutive grid points. The result has c.Len()-1 points.
func Derivative(c types.Curve) types.Curve {
	n := c.Len()
	if n < 2 {
		return types.Curve{X: []float64{}, Y: []float64{}}
	}

	xs := make([]float64, n-1)
	ys := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		xs[i] = (c.X[i] + c.X[i+1]) / 2
		ys[i] = (c.Y[i+1] - c.Y[i]) / (c.X[i+1] - c.X[i])
	}
	return types.Curve{X: xs, Y: ys}
}
