package curve

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/types"
)

// synthetic returns cycles 1..n of the model plus deterministic noise of the
// given amplitude.
func synthetic(p types.FitParameters, n int, noise float64) types.Sample {
	rng := rand.New(rand.NewSource(42))
	s := make(types.Sample, n)
	for i := range s {
		x := float64(i + 1)
		s[i] = types.Point{X: x, Y: Eval(p, x) + (rng.Float64()*2-1)*noise}
	}
	return s
}

func assertRelative(t *testing.T, want, got, rel float64, name string) {
	t.Helper()
	assert.LessOrEqualf(t, math.Abs(got-want), rel*math.Abs(want), "%s: got %v, want %v", name, got, want)
}

func TestFitRecoversParameters(t *testing.T) {
	truth := types.FitParameters{A: 6e4, B: 5.5e4, X0: 27, Sigma: 3.5}
	s := synthetic(truth, 45, 10)

	ref, err := NewFitter(DefaultOptions()).Fit(s)
	require.NoError(t, err)

	for _, solver := range []string{SolverLM, SolverBFGS, SolverNelderMead} {
		t.Run(solver, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Solver = solver

			fit, err := NewFitter(opts).Fit(s)
			require.NoError(t, err)

			assertRelative(t, truth.A, fit.Params.A, 0.01, "A")
			assertRelative(t, truth.B, fit.Params.B, 0.01, "B")
			assertRelative(t, truth.X0, fit.Params.X0, 0.01, "x0")
			assertRelative(t, truth.Sigma, fit.Params.Sigma, 0.01, "sigma")
			assert.Positive(t, fit.Iterations)
			assert.LessOrEqual(t, fit.SSR, ref.SSR*1.001)
		})
	}
}

func TestFitCurveGrid(t *testing.T) {
	truth := types.FitParameters{A: 6e4, B: 6e4, X0: 30, Sigma: 3}
	s := synthetic(truth, 40, 0)

	fit, err := NewFitter(Options{}).Fit(s)
	require.NoError(t, err)

	require.Equal(t, GridSize, fit.Curve.Len())
	require.Len(t, fit.Curve.Y, GridSize)
	assert.InDelta(t, 1.0, fit.Curve.X[0], 1e-12)
	assert.InDelta(t, 40.0, fit.Curve.X[GridSize-1], 1e-12)

	step := fit.Curve.X[1] - fit.Curve.X[0]
	for i := 1; i < GridSize; i++ {
		assert.InDelta(t, step, fit.Curve.X[i]-fit.Curve.X[i-1], 1e-9)
	}
}

func TestFitDeterministic(t *testing.T) {
	s := synthetic(types.FitParameters{A: 5e4, B: 4.5e4, X0: 24, Sigma: 4}, 40, 200)
	f := NewFitter(DefaultOptions())

	a, err := f.Fit(s)
	require.NoError(t, err)
	b, err := f.Fit(s)
	require.NoError(t, err)

	assert.Equal(t, a.Params, b.Params)
	assert.Equal(t, a.Curve, b.Curve)
}

func TestFitFailures(t *testing.T) {
	good := synthetic(types.FitParameters{A: 6e4, B: 6e4, X0: 30, Sigma: 3}, 40, 50)

	duplicated := types.Sample{{X: 1, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 3}, {X: 2, Y: 4}, {X: 3, Y: 5}, {X: 3, Y: 6}}
	unordered := types.Sample{{X: 1, Y: 1}, {X: 3, Y: 2}, {X: 2, Y: 3}, {X: 4, Y: 4}, {X: 5, Y: 5}}
	nonFinite := types.Sample{{X: 1, Y: 1}, {X: 2, Y: math.NaN()}, {X: 3, Y: 3}, {X: 4, Y: 4}, {X: 5, Y: 5}}

	tests := []struct {
		name   string
		opts   Options
		sample types.Sample
		want   error
	}{
		{name: "too few samples", sample: good[:4], want: pcrerr.ErrInsufficientData},
		{name: "fewer than four distinct cycles", sample: duplicated, want: pcrerr.ErrFitConvergence},
		{name: "cycles not increasing", sample: unordered, want: pcrerr.ErrDegenerateInput},
		{name: "non-finite signal", sample: nonFinite, want: pcrerr.ErrDegenerateInput},
		{name: "iteration budget exhausted", opts: Options{MaxIterations: 1}, sample: good, want: pcrerr.ErrFitConvergence},
		{name: "unknown solver", opts: Options{Solver: "simplex"}, sample: good, want: pcrerr.ErrFitConvergence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFitter(tt.opts).Fit(tt.sample)
			require.Error(t, err)
			assert.Truef(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestNewFitterDefaults(t *testing.T) {
	opts := NewFitter(Options{}).Options()
	assert.Equal(t, DefaultInitialGuess, opts.InitialGuess)
	assert.Equal(t, DefaultMaxIterations, opts.MaxIterations)
	assert.Equal(t, SolverLM, opts.Solver)
}

func TestEval(t *testing.T) {
	p := types.FitParameters{A: 10, B: 5, X0: 20, Sigma: 2}
	assert.Equal(t, 10.0, Eval(p, 20))
	assert.InDelta(t, 15.0, Eval(p, 1e6), 1e-9)
	assert.InDelta(t, 5.0, Eval(p, -1e6), 1e-9)
	assert.InDelta(t, 10+5*math.Tanh(0.5), Eval(p, 21), 1e-12)
}
