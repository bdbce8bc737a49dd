package pipeline

import (
	"github.com/pcran/pcran/pkg/config"
	"github.com/pcran/pcran/pkg/curve"
)

// OptionsFromConfig builds run options from a configuration.
func OptionsFromConfig(c config.Config) (Options, error) {
	values, err := c.IndependentValues()
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Detection:         c.Detection(),
		Threshold:         c.Threshold(),
		Method:            c.Method(),
		LogX:              c.NeedLogX(),
		Efficiency:        c.NeedEff(),
		YAxis:             c.YName(),
		XName:             c.XName(),
		IndependentValues: values,
		Workers:           c.Workers(),
		Fit: curve.Options{
			InitialGuess:  c.InitialGuess(),
			MaxIterations: c.MaxIterations(),
			Solver:        c.Solver(),
		},
	}.clone()
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
