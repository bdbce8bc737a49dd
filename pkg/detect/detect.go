// Package detect extracts the signal point (Ct) of one well from its fitted
// amplification curve.
package detect

import (
	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/types"
)

// Policy names.
const (
	// PolicyLinear picks the steepest point of the fitted curve, i.e. the
	// inflection point of the sigmoid.
	PolicyLinear = "linear"
	// PolicyThreshold picks the first grid point whose fitted signal exceeds
	// a fixed threshold.
	PolicyThreshold = "threshold"
)

// Policies lists the supported policy names.
var Policies = []string{PolicyLinear, PolicyThreshold}

// Detector extracts a SignalPoint under one policy.
type Detector struct {
	policy    string
	threshold float64
}

// New returns a Detector for the named policy. threshold is only used by
// PolicyThreshold.
func New(policy string, threshold float64) (*Detector, error) {
	if err := Validate(policy); err != nil {
		return nil, err
	}
	return &Detector{policy: policy, threshold: threshold}, nil
}

// Validate reports whether policy is supported.
func Validate(policy string) error {
	switch policy {
	case PolicyLinear, PolicyThreshold:
		return nil
	default:
		return pcrerr.New(pcrerr.KindUnknownDetectionPolicy, "unknown detection method: %q", policy)
	}
}

// Policy returns the detector's policy name.
func (d *Detector) Policy() string { return d.policy }

// Threshold returns the configured threshold.
func (d *Detector) Threshold() float64 { return d.threshold }

// Detect returns the signal point of a fitted curve and its derivative.
// derivative must be aligned with fitted, one point shorter.
func (d *Detector) Detect(fitted, derivative types.Curve) types.SignalPoint {
	switch d.policy {
	case PolicyThreshold:
		return ThresholdCrossing(fitted, derivative, d.threshold)
	default:
		return MaxSlope(derivative)
	}
}

// MaxSlope returns the derivative point with the largest slope. Ties resolve
// to the lowest x.
func MaxSlope(derivative types.Curve) types.SignalPoint {
	if derivative.Len() == 0 {
		return types.SignalPoint{}
	}

	best := 0
	for i := 1; i < derivative.Len(); i++ {
		if derivative.Y[i] > derivative.Y[best] {
			best = i
		}
	}
	return types.SignalPoint{X: derivative.X[best], Y: derivative.Y[best], Detected: true}
}

// ThresholdCrossing returns (x_i, derivative_i) at the first index i where the
// fitted signal exceeds threshold. The derivative has no value at the final
// grid point, so a crossing there reports a slope of 0. A curve that never
// crosses yields the zero point with Detected unset.
func ThresholdCrossing(fitted, derivative types.Curve, threshold float64) types.SignalPoint {
	for i, y := range fitted.Y {
		if y <= threshold {
			continue
		}
		sp := types.SignalPoint{X: fitted.X[i], Detected: true}
		if i < derivative.Len() {
			sp.Y = derivative.Y[i]
		}
		return sp
	}
	return types.SignalPoint{}
}
