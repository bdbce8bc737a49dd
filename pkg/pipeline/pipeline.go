// Package pipeline runs a complete calibration analysis: fit every well's
// amplification trace, locate its signal point, pair it with the well's known
// covariate, regress the calibration dataset and derive the PCR efficiency.
//
// A run moves through the stages
//
//	ReadSamples -> FitEachWell -> DetectSignalPoints ->
//	AggregateCalibrationDataset -> TransformX -> Regress -> Efficiency -> Emit
//
// and ends Completed or Failed. The first failing stage aborts the run and the
// returned error carries that stage (and the well, if any).
package pipeline

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pcran/pcran/pkg/curve"
	"github.com/pcran/pcran/pkg/detect"
	"github.com/pcran/pcran/pkg/efficiency"
	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/regression"
	"github.com/pcran/pcran/pkg/types"
)

// Stage names a step of a run.
type Stage string

const (
	StageReadSamples Stage = "ReadSamples"
	StageFit         Stage = "FitEachWell"
	StageDetect      Stage = "DetectSignalPoints"
	StageAggregate   Stage = "AggregateCalibrationDataset"
	StageTransform   Stage = "TransformX"
	StageRegress     Stage = "Regress"
	StageEfficiency  Stage = "Efficiency"
	StageEmit        Stage = "Emit"
	StageCompleted   Stage = "Completed"
	StageFailed      Stage = "Failed"
)

// Pipeline is a configured calibration analysis. It holds no per-run state
// and may be used for several runs, also concurrently.
type Pipeline struct {
	opts     Options
	fitter   *curve.Fitter
	detector *detect.Detector
	reporter Reporter
}

// New validates opts and returns a Pipeline. opts is copied; later changes to
// the caller's map do not affect the pipeline. reporter may be nil.
func New(opts Options, reporter Reporter) (*Pipeline, error) {
	opts = opts.clone()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	d, err := detect.New(opts.Detection, opts.Threshold)
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = Reporters{}
	}

	fitter := curve.NewFitter(opts.Fit)
	opts.Fit = fitter.Options()

	return &Pipeline{
		opts:     opts,
		fitter:   fitter,
		detector: d,
		reporter: reporter,
	}, nil
}

// Options returns the effective options of p.
func (p *Pipeline) Options() Options {
	return p.opts.clone()
}

// Wells returns the analysed wells in ascending order.
func (p *Pipeline) Wells() []string {
	wells := make([]string, 0, len(p.opts.IndependentValues))
	for w := range p.opts.IndependentValues {
		wells = append(wells, w)
	}
	sort.Strings(wells)
	return wells
}

// ProcessWell fits one well's trace and detects its signal point.
func (p *Pipeline) ProcessWell(well string, s types.Sample) (*types.WellResult, error) {
	fit, err := p.fitter.Fit(s)
	if err != nil {
		return nil, pcrerr.Annotate(err, string(StageFit), well)
	}

	der := curve.Derivative(fit.Curve)
	return &types.WellResult{
		Well:        well,
		Independent: p.opts.IndependentValues[well],
		Params:      fit.Params,
		Iterations:  fit.Iterations,
		Sample:      append(types.Sample(nil), s...),
		Fitted:      fit.Curve,
		Derivative:  der,
		Signal:      p.detector.Detect(fit.Curve, der),
	}, nil
}

// Run analyses samples, keyed by well. Only wells named in
// Options.IndependentValues are analysed; each of them must have a sample.
// Results are independent of the number of workers and of map order.
func (p *Pipeline) Run(ctx context.Context, samples map[string]types.Sample) (*types.Result, error) {
	runID := uuid.NewString()

	res, err := p.run(ctx, runID, samples)
	if err != nil {
		p.reporter.RunFailed(runID, err)
		return nil, err
	}
	p.reporter.RunCompleted(res)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, samples map[string]types.Sample) (*types.Result, error) {
	wells := p.Wells()
	if len(wells) == 0 {
		return nil, pcrerr.New(pcrerr.KindInsufficientData, "no wells selected").WithStage(string(StageReadSamples))
	}
	for _, w := range wells {
		if len(samples[w]) == 0 {
			return nil, pcrerr.New(pcrerr.KindInsufficientData, "no data for well").
				WithStage(string(StageReadSamples)).
				WithWell(w)
		}
	}

	results, err := p.processWells(ctx, runID, wells, samples)
	if err != nil {
		return nil, err
	}

	dataset := make([]types.CalibrationPoint, len(results))
	for i, wr := range results {
		dataset[i] = types.CalibrationPoint{Independent: wr.Independent, Dependent: p.dependent(wr.Signal)}
	}

	res, err := p.finish(dataset)
	if err != nil {
		return nil, err
	}
	res.RunID = runID
	res.Fingerprint = Fingerprint(p.opts, samples)
	res.Wells = results
	return res, nil
}

// RegressDataset runs the tail of the pipeline (TransformX, Regress,
// Efficiency) on an already assembled calibration dataset.
func (p *Pipeline) RegressDataset(ctx context.Context, points []types.CalibrationPoint) (*types.Result, error) {
	runID := uuid.NewString()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := p.finish(append([]types.CalibrationPoint(nil), points...))
	if err != nil {
		p.reporter.RunFailed(runID, err)
		return nil, err
	}
	res.RunID = runID
	res.Fingerprint = DatasetFingerprint(p.opts, points)
	p.reporter.RunCompleted(res)
	return res, nil
}

// processWells fits and detects every well on a bounded worker pool. Results
// are stored by well index so their order never depends on scheduling.
func (p *Pipeline) processWells(ctx context.Context, runID string, wells []string, samples map[string]types.Sample) ([]types.WellResult, error) {
	out := make([]types.WellResult, len(wells))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, well := range wells {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			wr, err := p.ProcessWell(well, samples[well])
			if err != nil {
				return err
			}
			out[i] = *wr
			p.reporter.WellProcessed(runID, *wr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) dependent(sp types.SignalPoint) float64 {
	if p.opts.YAxis == AxisDRFU {
		return sp.Y
	}
	return sp.X
}

// finish transforms, regresses and computes the efficiency of dataset, which
// it may modify in place.
func (p *Pipeline) finish(dataset []types.CalibrationPoint) (*types.Result, error) {
	if len(dataset) == 0 {
		return nil, pcrerr.New(pcrerr.KindInsufficientData, "empty calibration dataset").WithStage(string(StageAggregate))
	}

	if p.opts.LogX {
		for i := range dataset {
			v := dataset[i].Independent
			if v <= 0 || math.IsNaN(v) {
				return nil, pcrerr.New(pcrerr.KindDegenerateInput, "log10 of non-positive value %g", v).
					WithStage(string(StageTransform))
			}
			dataset[i].Independent = math.Log10(v)
		}
	}

	reg, err := regression.Fit(p.opts.Method, dataset)
	if err != nil {
		return nil, pcrerr.Annotate(err, string(StageRegress), "")
	}

	res := &types.Result{
		XLabel:     p.opts.XLabel(),
		YLabel:     p.opts.YLabel(),
		Dataset:    dataset,
		Regression: reg,
	}

	if p.opts.Efficiency {
		eff, err := efficiency.FromRegression(reg)
		if err != nil {
			return nil, pcrerr.Annotate(err, string(StageEfficiency), "")
		}
		res.Efficiency = &eff
	}
	return res, nil
}
