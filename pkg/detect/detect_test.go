package detect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcran/pcran/pkg/curve"
	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/types"
)

func TestNewUnknownPolicy(t *testing.T) {
	_, err := New("quadratic", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pcrerr.ErrUnknownDetectionPolicy))

	for _, p := range Policies {
		d, err := New(p, 1)
		require.NoError(t, err)
		assert.Equal(t, p, d.Policy())
	}
}

func TestThresholdCrossing(t *testing.T) {
	fitted := types.Curve{X: []float64{0, 1, 2, 3, 4}, Y: []float64{1, 2, 3, 4, 5}}
	derivative := curve.Derivative(fitted)

	tests := []struct {
		name      string
		threshold float64
		want      types.SignalPoint
	}{
		{name: "crossing inside the grid", threshold: 2.5, want: types.SignalPoint{X: 2, Y: 1, Detected: true}},
		{name: "equal values do not cross", threshold: 2, want: types.SignalPoint{X: 2, Y: 1, Detected: true}},
		{name: "first point already above", threshold: 0, want: types.SignalPoint{X: 0, Y: 1, Detected: true}},
		{name: "crossing at the final point", threshold: 4.5, want: types.SignalPoint{X: 4, Y: 0, Detected: true}},
		{name: "never crosses", threshold: 5, want: types.SignalPoint{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(PolicyThreshold, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Detect(fitted, derivative))
		})
	}
}

func TestMaxSlopeTieTakesFirst(t *testing.T) {
	derivative := types.Curve{X: []float64{0.5, 1.5, 2.5, 3.5}, Y: []float64{1, 4, 4, 2}}
	assert.Equal(t, types.SignalPoint{X: 1.5, Y: 4, Detected: true}, MaxSlope(derivative))
	assert.Equal(t, types.SignalPoint{}, MaxSlope(types.Curve{}))
}

func TestLinearPolicyFindsInflection(t *testing.T) {
	p := types.FitParameters{A: 7e4, B: 7e4, X0: 31.2, Sigma: 3}
	fitted := curve.Evaluate(p, 1, 50, curve.GridSize)
	derivative := curve.Derivative(fitted)

	d, err := New(PolicyLinear, 0)
	require.NoError(t, err)

	sp := d.Detect(fitted, derivative)
	assert.True(t, sp.Detected)
	assert.InDelta(t, p.X0, sp.X, fitted.X[1]-fitted.X[0])
}
