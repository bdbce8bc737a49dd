// Package regression fits calibration data to a straight line, either by
// ordinary least squares (lsq) or by an error-weighted chi-square method on
// replicate groups (hi2).
package regression

import (
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/stat"

	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/types"
)

// Method names.
const (
	MethodLSQ = "lsq"
	MethodHi2 = "hi2"
)

// Methods lists the supported method names.
var Methods = []string{MethodLSQ, MethodHi2}

// MinPoints is the smallest calibration dataset the error statistics are
// defined for.
const MinPoints = 3

var titles = map[string]string{
	MethodLSQ: "Least squares method",
	MethodHi2: "Chi-square method",
}

// Validate reports whether method is supported.
func Validate(method string) error {
	if _, ok := titles[method]; !ok {
		return &pcrerr.Error{
			Kind:   pcrerr.KindUnknownRegressionMethod,
			Method: method,
			Detail: "expected one of lsq, hi2",
		}
	}
	return nil
}

// Fit fits points with the named method.
func Fit(method string, points []types.CalibrationPoint) (types.RegressionResult, error) {
	if err := Validate(method); err != nil {
		return types.RegressionResult{}, err
	}
	if len(points) < MinPoints {
		return types.RegressionResult{}, &pcrerr.Error{
			Kind:   pcrerr.KindInsufficientData,
			Method: method,
			Detail: "need at least 3 calibration points",
		}
	}

	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i], y[i] = p.Independent, p.Dependent
	}

	switch method {
	case MethodHi2:
		return ChiSquare(x, y)
	default:
		return LeastSquares(x, y)
	}
}

// LeastSquares fits y = alpha*x + beta by ordinary least squares:
//
//	alpha = (<xy> - <x><y>) / (<x²> - <x>²)
//	beta  = <y> - alpha*<x>
//	dalpha = sqrt((var(y)/var(x) - alpha²) / (n-2))
//	dbeta  = dalpha * sqrt(<x²>)
//
// with population variances.
func LeastSquares(x, y []float64) (types.RegressionResult, error) {
	n := len(x)
	if n < MinPoints || len(y) != n {
		return types.RegressionResult{}, &pcrerr.Error{
			Kind:   pcrerr.KindInsufficientData,
			Method: MethodLSQ,
			Detail: "need at least 3 paired points",
		}
	}

	mx, varX := stat.PopMeanVariance(x, nil)
	if varX == 0 {
		return types.RegressionResult{}, &pcrerr.Error{
			Kind:   pcrerr.KindDegenerateInput,
			Method: MethodLSQ,
			Detail: "all independent values are equal",
		}
	}
	my, varY := stat.PopMeanVariance(y, nil)

	xy, xx := products(x, y)
	mxx := stat.Mean(xx, nil)

	alpha := (stat.Mean(xy, nil) - mx*my) / (mxx - mx*mx)
	beta := my - alpha*mx

	// Noise-free data can leave a tiny negative radicand.
	radicand := (varY/varX - alpha*alpha) / float64(n-2)
	dalpha := math.Sqrt(math.Max(radicand, 0))

	return types.RegressionResult{
		Method:         MethodLSQ,
		Title:          titles[MethodLSQ],
		Slope:          alpha,
		Intercept:      beta,
		SlopeError:     dalpha,
		InterceptError: dalpha * math.Sqrt(mxx),
		X:              append([]float64(nil), x...),
		Y:              append([]float64(nil), y...),
	}, nil
}

// ChiSquare groups replicate points by x, weights each group by the inverse
// of its half-range and fits the weighted line:
//
//	alpha = (w<xy> - w<x>w<y>) / (w<x²> - w<x>²)
//	beta  = w<y> - alpha*w<x>
//	dalpha = sqrt(1 / (Σw * var(x)))
//	dbeta  = dalpha * sqrt(<x²>)
//
// where w<.> are weighted means and var, <x²> are unweighted over the groups.
func ChiSquare(x, y []float64) (types.RegressionResult, error) {
	if len(x) < MinPoints || len(y) != len(x) {
		return types.RegressionResult{}, &pcrerr.Error{
			Kind:   pcrerr.KindInsufficientData,
			Method: MethodHi2,
			Detail: "need at least 3 paired points",
		}
	}

	groups := Aggregate(x, y)
	gx := make([]float64, len(groups))
	gy := make([]float64, len(groups))
	errs := make([]float64, len(groups))
	weights := make([]float64, len(groups))
	for i, g := range groups {
		if g.YHalfRange == 0 {
			return types.RegressionResult{}, &pcrerr.Error{
				Kind:   pcrerr.KindZeroErrorNotSupported,
				Method: MethodHi2,
				Detail: "this method is not supported for points without error",
			}
		}
		gx[i], gy[i], errs[i] = g.X, g.YMean, g.YHalfRange
		weights[i] = 1 / g.YHalfRange
	}

	_, varX := stat.PopMeanVariance(gx, nil)
	if varX == 0 {
		return types.RegressionResult{}, &pcrerr.Error{
			Kind:   pcrerr.KindDegenerateInput,
			Method: MethodHi2,
			Detail: "all independent values are equal",
		}
	}

	xy, xx := products(gx, gy)
	wmx := stat.Mean(gx, weights)
	wmy := stat.Mean(gy, weights)

	alpha := (stat.Mean(xy, weights) - wmx*wmy) / (stat.Mean(xx, weights) - wmx*wmx)
	beta := wmy - alpha*wmx

	var sumW float64
	for _, w := range weights {
		sumW += w
	}
	dalpha := math.Sqrt(1 / (sumW * varX))

	return types.RegressionResult{
		Method:         MethodHi2,
		Title:          titles[MethodHi2],
		Slope:          alpha,
		Intercept:      beta,
		SlopeError:     dalpha,
		InterceptError: dalpha * math.Sqrt(stat.Mean(xx, nil)),
		X:              gx,
		Y:              gy,
		PointErrors:    errs,
	}, nil
}

// Aggregate groups points sharing an exact x value. Groups keep the order in
// which their x first appears.
func Aggregate(x, y []float64) []types.AggregatedPoint {
	index := make(map[float64]int, len(x))
	var members [][]float64
	var keys []float64
	for i, xv := range x {
		j, ok := index[xv]
		if !ok {
			j = len(keys)
			index[xv] = j
			keys = append(keys, xv)
			members = append(members, nil)
		}
		members[j] = append(members[j], y[i])
	}

	out := make([]types.AggregatedPoint, len(keys))
	for j, xv := range keys {
		ys := members[j]
		lo, hi := ys[0], ys[0]
		for _, v := range ys[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		out[j] = types.AggregatedPoint{
			X:          xv,
			YMean:      stat.Mean(ys, nil),
			YHalfRange: math.Abs(hi-lo) / 2,
		}
	}
	return out
}

// products returns the element-wise columns x*y and x*x.
func products(x, y []float64) (xy, xx []float64) {
	xy = make([]float64, len(x))
	xx = make([]float64, len(x))
	vecmath.MulBlock(xy, x, y)
	vecmath.MulBlock(xx, x, x)
	return xy, xx
}
