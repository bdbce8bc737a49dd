package efficiency

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/types"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name        string
		alpha       float64
		dalpha      float64
		wantPercent float64
		tolerance   float64
	}{
		{name: "textbook slope", alpha: -3.32, wantPercent: 100, tolerance: 0.1},
		{name: "ideal slope", alpha: IdealSlope, wantPercent: 100, tolerance: 1e-9},
		{name: "sign does not matter", alpha: 3.32, wantPercent: 100, tolerance: 0.1},
		{name: "low efficiency", alpha: -3.6, wantPercent: (math.Pow(10, 1/3.6) - 1) * 100, tolerance: 1e-12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Calculate(tt.alpha, tt.dalpha)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPercent, res.Percent, tt.tolerance)
			assert.Equal(t, 0.0, res.ErrorPercent)
		})
	}
}

func TestCalculateErrorPropagation(t *testing.T) {
	alpha, dalpha := -3.4, 0.05
	res, err := Calculate(alpha, dalpha)
	require.NoError(t, err)

	want := math.Pow(10, 1/3.4) * math.Log(10) / (alpha * alpha) * dalpha * 100
	assert.InDelta(t, want, res.ErrorPercent, 1e-12)

	// Numerical check: dE/dalpha times dalpha.
	h := 1e-6
	e1, _ := Calculate(alpha-h, 0)
	e2, _ := Calculate(alpha+h, 0)
	assert.InDelta(t, math.Abs(e2.Percent-e1.Percent)/(2*h)*dalpha, res.ErrorPercent, 1e-4)
}

func TestCalculateZeroSlope(t *testing.T) {
	_, err := Calculate(0, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pcrerr.ErrDivisionByZero))

	_, err = FromRegression(types.RegressionResult{})
	assert.True(t, errors.Is(err, pcrerr.ErrDivisionByZero))
}
