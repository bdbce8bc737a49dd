package pipeline

import (
	"runtime"

	"github.com/pcran/pcran/pkg/curve"
	"github.com/pcran/pcran/pkg/detect"
	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/regression"
)

// Dependent axis names: which SignalPoint coordinate is regressed.
const (
	AxisCt   = "ct"
	AxisDRFU = "drfu"
)

// Options is the complete, immutable configuration of a pipeline run.
type Options struct {
	// Detection is the signal point policy, detect.PolicyLinear or
	// detect.PolicyThreshold.
	Detection string
	Threshold float64
	// Method is the regression method, regression.MethodLSQ or
	// regression.MethodHi2.
	Method string
	// LogX applies log10 to the independent values before regression.
	LogX bool
	// Efficiency computes the PCR efficiency from the regression slope.
	Efficiency bool
	// YAxis selects the dependent value, AxisCt (SignalPoint.X) or AxisDRFU
	// (SignalPoint.Y).
	YAxis string
	// XName labels the independent variable, e.g. "conc".
	XName string
	// IndependentValues maps each analysed well to its known covariate.
	// Wells absent from the map are ignored.
	IndependentValues map[string]float64
	// Workers bounds the number of wells fitted in parallel.
	Workers int
	Fit     curve.Options
}

// DefaultOptions returns options matching the tool's documented defaults.
func DefaultOptions() Options {
	return Options{
		Detection:  detect.PolicyLinear,
		Method:     regression.MethodLSQ,
		LogX:       true,
		Efficiency: true,
		YAxis:      AxisCt,
		XName:      "x",
		Workers:    runtime.NumCPU(),
		Fit:        curve.DefaultOptions(),
	}
}

// Validate checks every named option before any work is done.
func (o Options) Validate() error {
	if err := detect.Validate(o.Detection); err != nil {
		return err
	}
	if err := regression.Validate(o.Method); err != nil {
		return err
	}
	switch o.YAxis {
	case AxisCt, AxisDRFU:
	default:
		return pcrerr.New(pcrerr.KindDegenerateInput, "incorrect y axis: %q", o.YAxis)
	}
	return nil
}

// clone returns a copy of o that shares no mutable state with it, with
// defaults filled in.
func (o Options) clone() Options {
	c := o
	c.IndependentValues = make(map[string]float64, len(o.IndependentValues))
	for k, v := range o.IndependentValues {
		c.IndependentValues[k] = v
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.YAxis == "" {
		c.YAxis = AxisCt
	}
	if c.XName == "" {
		c.XName = "x"
	}
	return c
}

// XLabel is the axis label of the regressed independent values.
func (o Options) XLabel() string {
	if o.LogX {
		return "log(" + o.XName + ")"
	}
	return o.XName
}

// YLabel is the axis label of the regressed dependent values.
func (o Options) YLabel() string {
	if o.YAxis == AxisDRFU {
		return "dRn'"
	}
	return "Ct"
}
