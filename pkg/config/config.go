package config

import (
	"github.com/pcran/pcran/pkg/types"
)

// Analysis modes.
const (
	// ModeAmplification analyses raw amplification traces (rampl).
	ModeAmplification = "rampl"
	// ModeLinearFit regresses a ready calibration point file (lfd).
	ModeLinearFit = "lfd"
)

type Config interface {
	Mode() string
	Filename() string
	Sheet() string
	Wells() []string
	X() []float64
	XName() string
	YName() string
	Detection() string
	Threshold() float64
	Method() string
	NeedLogX() bool
	NeedEff() bool
	Workers() int
	Solver() string
	MaxIterations() int
	InitialGuess() types.FitParameters
	OutputDir() string
	CleanOutput() bool
	CurveCompression() string
	Listen() string
	Schedule() string

	// IndependentValues pairs Wells with X.
	IndependentValues() (map[string]float64, error)

	// Merge overwrites every field set in o.
	Merge(o *RawFileConfig)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
