// Package curve fits qPCR amplification traces to the tanh growth model
//
//	f(x) = A + B*tanh((x-x0)/sigma)
//
// and differentiates the fitted curve numerically.
package curve

import (
	"math"

	"github.com/pcran/pcran/pkg/types"
)

// GridSize is the number of points of a fitted curve.
const GridSize = 1000

// DefaultInitialGuess is tuned to raw fluorescence magnitudes of common
// instruments (plateau around 1.4e5 dRn, Ct around 30).
var DefaultInitialGuess = types.FitParameters{A: 7e4, B: 7e4, X0: 30, Sigma: 3}

// Eval returns f(x) for parameters p.
func Eval(p types.FitParameters, x float64) float64 {
	return p.A + p.B*math.Tanh((x-p.X0)/p.Sigma)
}

// gradient returns the partial derivatives of f at x with respect to
// (A, B, x0, sigma).
func gradient(p types.FitParameters, x float64) [4]float64 {
	u := (x - p.X0) / p.Sigma
	t := math.Tanh(u)
	sech2 := 1 - t*t
	return [4]float64{
		1,
		t,
		-p.B * sech2 / p.Sigma,
		-p.B * sech2 * u / p.Sigma,
	}
}

func toVector(p types.FitParameters) [4]float64 {
	return [4]float64{p.A, p.B, p.X0, p.Sigma}
}

func fromVector(v []float64) types.FitParameters {
	return types.FitParameters{A: v[0], B: v[1], X0: v[2], Sigma: v[3]}
}
