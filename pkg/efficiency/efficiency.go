// Package efficiency converts the slope of a standard curve into a PCR
// amplification efficiency.
package efficiency

import (
	"math"

	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/types"
)

// IdealSlope is the standard-curve slope of a perfectly doubling reaction
// against log10 input, -1/log10(2).
var IdealSlope = -1 / math.Log10(2)

// Calculate returns the efficiency for a slope fitted against log10 of the
// independent variable:
//
//	E  = (10^(1/|alpha|) - 1) * 100
//	dE = 10^(1/|alpha|) * ln(10) / alpha² * dalpha * 100
func Calculate(alpha, dalpha float64) (types.EfficiencyResult, error) {
	if alpha == 0 {
		return types.EfficiencyResult{}, pcrerr.New(pcrerr.KindDivisionByZero, "efficiency is undefined for a zero slope")
	}

	growth := math.Pow(10, 1/math.Abs(alpha))
	return types.EfficiencyResult{
		Percent:      (growth - 1) * 100,
		ErrorPercent: growth * math.Ln10 / (alpha * alpha) * dalpha * 100,
	}, nil
}

// FromRegression returns the efficiency of a regression result.
func FromRegression(r types.RegressionResult) (types.EfficiencyResult, error) {
	return Calculate(r.Slope, r.SlopeError)
}
