package types

// Point is one (x, y) pair.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Sample is the amplification trace of one well: X is the cycle number, Y the
// background-subtracted fluorescence (dRn). Cycles are strictly increasing.
type Sample []Point

// Xs returns the cycle column.
func (s Sample) Xs() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.X
	}
	return out
}

// Ys returns the signal column.
func (s Sample) Ys() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Y
	}
	return out
}

// Curve is a dense, x-ordered series such as a fitted curve or its derivative.
type Curve struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Len returns the number of points in the curve.
func (c Curve) Len() int { return len(c.X) }

// FitParameters are the coefficients of f(x) = A + B*tanh((x-x0)/sigma).
type FitParameters struct {
	A     float64 `json:"a" yaml:"a"`
	B     float64 `json:"b" yaml:"b"`
	X0    float64 `json:"x0" yaml:"x0"`
	Sigma float64 `json:"sigma" yaml:"sigma"`
}

// SignalPoint is the Ct-equivalent location of one well (X) and the
// derivative value there (Y). Detected is false when the threshold policy
// found no crossing.
type SignalPoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Detected bool    `json:"detected"`
}

// CalibrationPoint pairs a well's known covariate (e.g. concentration) with
// one coordinate of its SignalPoint.
type CalibrationPoint struct {
	Independent float64 `json:"independent"`
	Dependent   float64 `json:"dependent"`
}

// AggregatedPoint is the mean and half-range of all calibration points that
// share an independent value.
type AggregatedPoint struct {
	X          float64 `json:"x"`
	YMean      float64 `json:"yMean"`
	YHalfRange float64 `json:"yHalfRange"`
}

// RegressionResult is the fitted line y = Slope*x + Intercept.
type RegressionResult struct {
	Method         string  `json:"method"`
	Title          string  `json:"title"`
	Slope          float64 `json:"slope"`
	Intercept      float64 `json:"intercept"`
	SlopeError     float64 `json:"slopeError"`
	InterceptError float64 `json:"interceptError"`
	// X and Y are the points the line was fit to (grouped points for hi2).
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	// PointErrors is nil for lsq; for hi2 it holds the half-ranges used as
	// error bars.
	PointErrors []float64 `json:"pointErrors,omitempty"`
}

// EfficiencyResult is the PCR amplification efficiency in percent.
type EfficiencyResult struct {
	Percent      float64 `json:"percent"`
	ErrorPercent float64 `json:"errorPercent"`
}

// WellResult is everything computed for one well.
type WellResult struct {
	Well        string        `json:"well"`
	Independent float64       `json:"independent"`
	Params      FitParameters `json:"params"`
	Iterations  int           `json:"iterations"`
	Sample      Sample        `json:"sample,omitempty"`
	Fitted      Curve         `json:"fitted"`
	Derivative  Curve         `json:"derivative"`
	Signal      SignalPoint   `json:"signal"`
}

// Result is the output of one pipeline run.
type Result struct {
	RunID       string             `json:"runId"`
	Fingerprint string             `json:"fingerprint"`
	XLabel      string             `json:"xLabel"`
	YLabel      string             `json:"yLabel"`
	Wells       []WellResult       `json:"wells,omitempty"`
	Dataset     []CalibrationPoint `json:"dataset"`
	Regression  RegressionResult   `json:"regression"`
	Efficiency  *EfficiencyResult  `json:"efficiency,omitempty"`
}
