package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcran/pcran/pkg/curve"
	"github.com/pcran/pcran/pkg/detect"
	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/regression"
	"github.com/pcran/pcran/pkg/types"
)

const idealSlope = -3.3219

// dilutionSeries returns five wells of a ten-fold dilution series with ideal
// doubling: each ten-fold step shifts x0 by 1/log10(2) cycles.
func dilutionSeries() (map[string]types.Sample, map[string]float64) {
	samples := map[string]types.Sample{}
	conc := map[string]float64{}
	for k := 0; k < 5; k++ {
		well := fmt.Sprintf("A%d", k+1)
		c := math.Pow(10, float64(k))
		p := types.FitParameters{A: 6e4, B: 5.5e4, X0: 35 + idealSlope*float64(k), Sigma: 3}

		s := make(types.Sample, 45)
		for i := range s {
			x := float64(i + 1)
			s[i] = types.Point{X: x, Y: curve.Eval(p, x)}
		}
		samples[well] = s
		conc[well] = c
	}
	return samples, conc
}

func testOptions(conc map[string]float64) Options {
	opts := DefaultOptions()
	opts.IndependentValues = conc
	opts.XName = "conc"
	opts.Workers = 4
	return opts
}

type recorder struct {
	mu        sync.Mutex
	wells     []string
	completed []*types.Result
	failed    []error
}

func (r *recorder) WellProcessed(_ string, w types.WellResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wells = append(r.wells, w.Well)
}

func (r *recorder) RunCompleted(res *types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, res)
}

func (r *recorder) RunFailed(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

func TestRunDilutionSeries(t *testing.T) {
	samples, conc := dilutionSeries()
	rec := &recorder{}

	p, err := New(testOptions(conc), rec)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), samples)
	require.NoError(t, err)

	require.Len(t, res.Wells, 5)
	for i, wr := range res.Wells {
		assert.Equal(t, fmt.Sprintf("A%d", i+1), wr.Well)
		assert.True(t, wr.Signal.Detected)
		assert.InDelta(t, 35+idealSlope*float64(i), wr.Signal.X, 0.05)
		assert.Len(t, wr.Fitted.X, curve.GridSize)
		assert.Len(t, wr.Derivative.X, curve.GridSize-1)
	}

	assert.Equal(t, "log(conc)", res.XLabel)
	assert.Equal(t, "Ct", res.YLabel)
	require.Len(t, res.Dataset, 5)
	for i, pt := range res.Dataset {
		assert.InDelta(t, float64(i), pt.Independent, 1e-12)
	}

	assert.Equal(t, regression.MethodLSQ, res.Regression.Method)
	assert.InDelta(t, idealSlope, res.Regression.Slope, 0.05)
	assert.InDelta(t, 35, res.Regression.Intercept, 0.1)
	require.NotNil(t, res.Efficiency)
	assert.InDelta(t, 100, res.Efficiency.Percent, 3)

	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Fingerprint, 16)

	assert.ElementsMatch(t, []string{"A1", "A2", "A3", "A4", "A5"}, rec.wells)
	assert.Len(t, rec.completed, 1)
	assert.Empty(t, rec.failed)
}

func TestRunIsIndependentOfWorkers(t *testing.T) {
	samples, conc := dilutionSeries()

	var results []*types.Result
	for _, workers := range []int{1, 3, 8} {
		opts := testOptions(conc)
		opts.Workers = workers
		p, err := New(opts, nil)
		require.NoError(t, err)

		res, err := p.Run(context.Background(), samples)
		require.NoError(t, err)
		results = append(results, res)
	}

	for _, res := range results[1:] {
		assert.Equal(t, results[0].Fingerprint, res.Fingerprint)
		assert.Equal(t, results[0].Regression, res.Regression)
		assert.Equal(t, results[0].Dataset, res.Dataset)
		assert.NotEqual(t, results[0].RunID, res.RunID)
	}
}

func TestRunIgnoresUnselectedWells(t *testing.T) {
	samples, conc := dilutionSeries()
	samples["H12"] = types.Sample{{X: 1, Y: 1}}

	p, err := New(testOptions(conc), nil)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), samples)
	require.NoError(t, err)
	assert.Len(t, res.Wells, 5)
}

func TestRunDRFUAxis(t *testing.T) {
	samples, conc := dilutionSeries()
	opts := testOptions(conc)
	opts.YAxis = AxisDRFU
	opts.Efficiency = false

	p, err := New(opts, nil)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), samples)
	require.NoError(t, err)
	assert.Equal(t, "dRn'", res.YLabel)
	assert.Nil(t, res.Efficiency)
	for i, wr := range res.Wells {
		assert.Equal(t, wr.Signal.Y, res.Dataset[i].Dependent)
	}
}

func TestRunThresholdPolicy(t *testing.T) {
	samples, conc := dilutionSeries()
	opts := testOptions(conc)
	opts.Detection = detect.PolicyThreshold
	opts.Threshold = 6e4

	p, err := New(opts, nil)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), samples)
	require.NoError(t, err)
	// f(x) > A exactly past x0, so the crossing tracks x0.
	for i, wr := range res.Wells {
		assert.InDelta(t, 35+idealSlope*float64(i), wr.Signal.X, 0.1)
	}
	assert.InDelta(t, idealSlope, res.Regression.Slope, 0.1)
}

func TestRunFitFailureCarriesWell(t *testing.T) {
	samples, conc := dilutionSeries()
	samples["A3"] = samples["A3"][:4]
	rec := &recorder{}

	opts := testOptions(conc)
	opts.Workers = 1
	p, err := New(opts, rec)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), samples)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pcrerr.ErrInsufficientData))

	var perr *pcrerr.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "A3", perr.Well)
	assert.Equal(t, string(StageFit), perr.Stage)

	assert.Empty(t, rec.completed)
	assert.Len(t, rec.failed, 1)
}

func TestRunMissingWell(t *testing.T) {
	samples, conc := dilutionSeries()
	delete(samples, "A2")

	p, err := New(testOptions(conc), nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), samples)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pcrerr.ErrInsufficientData))

	var perr *pcrerr.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "A2", perr.Well)
	assert.Equal(t, string(StageReadSamples), perr.Stage)
}

func TestRunTwoWellsIsInsufficient(t *testing.T) {
	samples, conc := dilutionSeries()
	two := map[string]float64{"A1": conc["A1"], "A2": conc["A2"]}

	p, err := New(testOptions(two), nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), samples)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pcrerr.ErrInsufficientData))
	assert.Equal(t, pcrerr.KindInsufficientData, pcrerr.KindOf(err))

	var perr *pcrerr.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, string(StageRegress), perr.Stage)
}

func TestRunCancelled(t *testing.T) {
	samples, conc := dilutionSeries()
	p, err := New(testOptions(conc), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx, samples)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidatesUpFront(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		want   error
	}{
		{name: "unknown policy", modify: func(o *Options) { o.Detection = "max" }, want: pcrerr.ErrUnknownDetectionPolicy},
		{name: "unknown method", modify: func(o *Options) { o.Method = "ransac" }, want: pcrerr.ErrUnknownRegressionMethod},
		{name: "unknown axis", modify: func(o *Options) { o.YAxis = "rn" }, want: pcrerr.ErrDegenerateInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.modify(&opts)
			_, err := New(opts, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewFillsDefaultAxis(t *testing.T) {
	opts := DefaultOptions()
	opts.YAxis = ""
	opts.XName = ""

	p, err := New(opts, nil)
	require.NoError(t, err)
	assert.Equal(t, AxisCt, p.Options().YAxis)
	assert.Equal(t, "x", p.Options().XName)
}

func TestNewCopiesOptions(t *testing.T) {
	conc := map[string]float64{"A1": 1}
	p, err := New(testOptions(conc), nil)
	require.NoError(t, err)

	conc["A2"] = 10
	assert.Equal(t, []string{"A1"}, p.Wells())
}

func TestRegressDataset(t *testing.T) {
	points := []types.CalibrationPoint{
		{Independent: 1, Dependent: 35},
		{Independent: 10, Dependent: 31.7},
		{Independent: 100, Dependent: 28.3},
		{Independent: 1000, Dependent: 25},
	}

	p, err := New(DefaultOptions(), nil)
	require.NoError(t, err)

	res, err := p.RegressDataset(context.Background(), points)
	require.NoError(t, err)
	assert.InDelta(t, -3.34, res.Regression.Slope, 1e-9)
	assert.Equal(t, 1000.0, points[3].Independent, "caller's dataset must not be transformed")
	assert.InDelta(t, 3, res.Dataset[3].Independent, 1e-12)
	assert.Empty(t, res.Wells)
	require.NotNil(t, res.Efficiency)
}

func TestRegressDatasetLogOfNonPositive(t *testing.T) {
	points := []types.CalibrationPoint{
		{Independent: 0, Dependent: 35},
		{Independent: 10, Dependent: 31.7},
		{Independent: 100, Dependent: 28.3},
	}

	p, err := New(DefaultOptions(), nil)
	require.NoError(t, err)

	_, err = p.RegressDataset(context.Background(), points)
	assert.ErrorIs(t, err, pcrerr.ErrDegenerateInput)

	var perr *pcrerr.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, string(StageTransform), perr.Stage)
}

func TestFingerprintChangesWithInput(t *testing.T) {
	samples, conc := dilutionSeries()
	opts := testOptions(conc)
	base := Fingerprint(opts, samples)

	assert.Equal(t, base, Fingerprint(opts, samples))

	opts.Method = regression.MethodHi2
	assert.NotEqual(t, base, Fingerprint(opts, samples))

	opts = testOptions(conc)
	opts.XName = "copies"
	assert.NotEqual(t, base, Fingerprint(opts, samples))

	opts = testOptions(conc)
	samples["A1"] = append(types.Sample(nil), samples["A1"]...)
	samples["A1"][0].Y++
	assert.NotEqual(t, base, Fingerprint(opts, samples))
}
