package config

import (
	pkgerrors "github.com/pkg/errors"
)

// Validate checks the fields that only the configuration layer knows about.
// Analysis options are validated when a pipeline is built from c.
func Validate(c Config) error {
	switch c.Mode() {
	case ModeAmplification:
		if _, err := c.IndependentValues(); err != nil {
			return err
		}
		if len(c.Wells()) == 0 {
			return pkgerrors.New("no wells configured")
		}
	case ModeLinearFit:
	default:
		return pkgerrors.Errorf("unknown mode %q, expected %s or %s", c.Mode(), ModeAmplification, ModeLinearFit)
	}

	if c.MaxIterations() <= 0 {
		return pkgerrors.Errorf("maxIterations must be positive, got %d", c.MaxIterations())
	}
	if c.Workers() < 0 {
		return pkgerrors.Errorf("workers must not be negative, got %d", c.Workers())
	}
	return nil
}
