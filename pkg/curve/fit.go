package curve

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/types"
)

// Solver names accepted by Options.Solver.
const (
	SolverLM         = "lm"
	SolverBFGS       = "bfgs"
	SolverNelderMead = "nelder-mead"
)

const (
	// DefaultMaxIterations bounds the number of accepted solver iterations.
	DefaultMaxIterations = 1000

	minSamples    = 5
	minDistinctX  = 4
	initialLambda = 1e-3
	maxLambda     = 1e16
	relTolerance  = 1e-10
	diagonalFloor = 1e-30
	numParameters = 4

	// gradientThreshold is in scaled coordinates, where every parameter starts at 1.
	gradientThreshold = 1e-8
)

// Options controls the sigmoid fit.
type Options struct {
	InitialGuess  types.FitParameters
	MaxIterations int
	Solver        string
}

// DefaultOptions returns the fit options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		InitialGuess:  DefaultInitialGuess,
		MaxIterations: DefaultMaxIterations,
		Solver:        SolverLM,
	}
}

// Fit is the outcome of fitting one sample.
type Fit struct {
	Params     types.FitParameters
	Curve      types.Curve
	Iterations int
	// SSR is the final sum of squared residuals.
	SSR float64
}

// Fitter fits samples to the tanh growth model. It holds no mutable state and
// is safe for concurrent use.
type Fitter struct {
	opts Options
}

// NewFitter returns a Fitter. Zero fields of opts take their defaults.
func NewFitter(opts Options) *Fitter {
	def := DefaultOptions()
	if opts.InitialGuess == (types.FitParameters{}) {
		opts.InitialGuess = def.InitialGuess
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Solver == "" {
		opts.Solver = def.Solver
	}
	return &Fitter{opts: opts}
}

// Options returns the effective options.
func (f *Fitter) Options() Options {
	return f.opts
}

// Fit fits s and evaluates the fitted model on a GridSize-point grid spanning
// the sample's cycle range.
func (f *Fitter) Fit(s types.Sample) (*Fit, error) {
	xs, ys := s.Xs(), s.Ys()
	if err := validate(xs, ys); err != nil {
		return nil, err
	}

	var (
		p     types.FitParameters
		iters int
		ssr   float64
		err   error
	)
	switch f.opts.Solver {
	case SolverLM:
		p, iters, ssr, err = f.levenbergMarquardt(xs, ys, f.opts.InitialGuess)
	case SolverBFGS, SolverNelderMead:
		p, iters, ssr, err = f.minimize(xs, ys)
	default:
		return nil, pcrerr.New(pcrerr.KindFitConvergence, "unknown solver %q", f.opts.Solver)
	}
	if err != nil {
		return nil, err
	}

	if pv := toVector(p); p.Sigma == 0 || !finite(pv[:]) {
		return nil, pcrerr.New(pcrerr.KindFitConvergence, "solver produced an undefined model (%+v)", p)
	}

	return &Fit{
		Params:     p,
		Curve:      Evaluate(p, xs[0], xs[len(xs)-1], GridSize),
		Iterations: iters,
		SSR:        ssr,
	}, nil
}

// Evaluate returns the model evaluated on n evenly spaced points over
// [lo, hi]. n must be at least 2.
func Evaluate(p types.FitParameters, lo, hi float64, n int) types.Curve {
	xs := floats.Span(make([]float64, n), lo, hi)
	ys := make([]float64, n)
	for i, x := range xs {
		ys[i] = Eval(p, x)
	}
	return types.Curve{X: xs, Y: ys}
}

func validate(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return pcrerr.New(pcrerr.KindDegenerateInput, "cycle and signal lengths differ (%d != %d)", len(xs), len(ys))
	}
	if len(xs) < minSamples {
		return pcrerr.New(pcrerr.KindInsufficientData, "need at least %d samples, got %d", minSamples, len(xs))
	}
	if !finite(xs) || !finite(ys) {
		return pcrerr.New(pcrerr.KindDegenerateInput, "sample contains non-finite values")
	}

	distinct := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		distinct[x] = struct{}{}
	}
	if len(distinct) < minDistinctX {
		return pcrerr.New(pcrerr.KindFitConvergence, "model is not identifiable from %d distinct cycles", len(distinct))
	}

	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return pcrerr.New(pcrerr.KindDegenerateInput, "cycles are not strictly increasing at index %d", i)
		}
	}
	return nil
}

// residuals fills r with y - f(x) and returns the sum of squares.
func residuals(p types.FitParameters, xs, ys, r []float64) float64 {
	var ssr float64
	for i, x := range xs {
		r[i] = ys[i] - Eval(p, x)
		ssr += r[i] * r[i]
	}
	return ssr
}

// levenbergMarquardt minimises the residual sum of squares by solving
//
//	(JᵀJ + λ·diag(JᵀJ)) δ = Jᵀr
//
// for each step. λ shrinks after an accepted step and grows after a rejected
// one. A λ beyond maxLambda means no descent direction is left, i.e. the
// current point is a minimum.
func (f *Fitter) levenbergMarquardt(xs, ys []float64, start types.FitParameters) (types.FitParameters, int, float64, error) {
	p := start
	n := len(xs)

	r := make([]float64, n)
	rTrial := make([]float64, n)
	ssr := residuals(p, xs, ys, r)
	if math.IsNaN(ssr) || math.IsInf(ssr, 0) {
		return p, 0, ssr, pcrerr.New(pcrerr.KindFitConvergence, "initial guess %+v gives a non-finite residual", p)
	}

	jtj := mat.NewDense(numParameters, numParameters, nil)
	lhs := mat.NewDense(numParameters, numParameters, nil)
	jtr := mat.NewVecDense(numParameters, nil)
	var delta mat.VecDense

	lambda := initialLambda
	for iter := 1; iter <= f.opts.MaxIterations; iter++ {
		if ssr == 0 {
			return p, iter - 1, ssr, nil
		}

		jtj.Zero()
		jtr.Zero()
		for i, x := range xs {
			g := gradient(p, x)
			for a := 0; a < numParameters; a++ {
				jtr.SetVec(a, jtr.AtVec(a)+g[a]*r[i])
				for b := 0; b < numParameters; b++ {
					jtj.Set(a, b, jtj.At(a, b)+g[a]*g[b])
				}
			}
		}

		for {
			lhs.Copy(jtj)
			for a := 0; a < numParameters; a++ {
				d := math.Max(jtj.At(a, a), diagonalFloor)
				lhs.Set(a, a, jtj.At(a, a)+lambda*d)
			}

			accepted := false
			if err := delta.SolveVec(lhs, jtr); err == nil || isCondition(err) {
				step := delta.RawVector().Data
				pv := toVector(p)
				trial := fromVector([]float64{pv[0] + step[0], pv[1] + step[1], pv[2] + step[2], pv[3] + step[3]})
				if trial.Sigma != 0 && finite(step) {
					trialSSR := residuals(trial, xs, ys, rTrial)
					if trialSSR < ssr {
						accepted = true
						converged := ssr-trialSSR <= relTolerance*ssr || smallStep(step, pv)
						p, ssr = trial, trialSSR
						r, rTrial = rTrial, r
						lambda = math.Max(lambda/10, 1e-12)
						if converged {
							return p, iter, ssr, nil
						}
					}
				}
			}
			if accepted {
				break
			}

			lambda *= 10
			if lambda > maxLambda {
				return p, iter, ssr, nil
			}
		}
	}

	return p, f.opts.MaxIterations, ssr, pcrerr.New(pcrerr.KindFitConvergence,
		"no convergence after %d iterations (ssr=%g)", f.opts.MaxIterations, ssr)
}

// minimize runs a gonum/optimize method on parameters scaled by the initial
// guess, so that all four coordinates start at 1, then refines the point it
// stopped at with levenbergMarquardt. A method that stops early on a failed
// line search or a flat simplex still hands over its best finite location.
func (f *Fitter) minimize(xs, ys []float64) (types.FitParameters, int, float64, error) {
	scale := toVector(f.opts.InitialGuess)
	for i := range scale {
		if scale[i] == 0 {
			scale[i] = 1
		}
	}
	unscale := func(q []float64) types.FitParameters {
		return types.FitParameters{A: q[0] * scale[0], B: q[1] * scale[1], X0: q[2] * scale[2], Sigma: q[3] * scale[3]}
	}

	r := make([]float64, len(xs))
	problem := optimize.Problem{
		Func: func(q []float64) float64 {
			p := unscale(q)
			if p.Sigma == 0 {
				return math.Inf(1)
			}
			return residuals(p, xs, ys, r)
		},
		Grad: func(grad, q []float64) {
			p := unscale(q)
			residuals(p, xs, ys, r)
			for a := range grad {
				grad[a] = 0
			}
			for i, x := range xs {
				g := gradient(p, x)
				for a := 0; a < numParameters; a++ {
					grad[a] -= 2 * r[i] * g[a] * scale[a]
				}
			}
		},
	}

	var method optimize.Method
	switch f.opts.Solver {
	case SolverBFGS:
		method = &optimize.BFGS{}
	default:
		method = &optimize.NelderMead{}
	}

	settings := &optimize.Settings{
		MajorIterations:   f.opts.MaxIterations,
		GradientThreshold: gradientThreshold,
		Converger: &optimize.FunctionConverge{
			Absolute:   0,
			Relative:   relTolerance,
			Iterations: 20,
		},
	}

	res, err := optimize.Minimize(problem, []float64{1, 1, 1, 1}, settings, method)
	if res == nil || len(res.X) != numParameters || !finite(res.X) || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		if err == nil {
			err = errors.New("no finite location")
		}
		return types.FitParameters{}, 0, 0, &pcrerr.Error{
			Kind:   pcrerr.KindFitConvergence,
			Detail: f.opts.Solver + " did not converge",
			Err:    err,
		}
	}

	p, iters, ssr, err := f.levenbergMarquardt(xs, ys, unscale(res.X))
	return p, iters + res.Stats.MajorIterations, ssr, err
}

func isCondition(err error) bool {
	var c mat.Condition
	return errors.As(err, &c)
}

func smallStep(step []float64, p [4]float64) bool {
	for i, s := range step {
		if math.Abs(s) > relTolerance*(math.Abs(p[i])+relTolerance) {
			return false
		}
	}
	return true
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
