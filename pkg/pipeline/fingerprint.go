package pipeline

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/pcran/pcran/pkg/types"
)

// Fingerprint returns a stable xxHash64 digest of everything that influences
// a run's numbers: the options and the samples of the analysed wells. Two runs
// with equal fingerprints produce identical regression results.
func Fingerprint(opts Options, samples map[string]types.Sample) string {
	d := xxhash.New()
	var buf [8]byte

	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	putString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		_, _ = d.Write(buf[:])
		_, _ = d.WriteString(s)
	}
	putBool := func(b bool) {
		if b {
			putFloat(1)
		} else {
			putFloat(0)
		}
	}

	putString(opts.Detection)
	putFloat(opts.Threshold)
	putString(opts.Method)
	putBool(opts.LogX)
	putBool(opts.Efficiency)
	putString(opts.YAxis)
	putString(opts.XName)
	putString(opts.Fit.Solver)
	putFloat(float64(opts.Fit.MaxIterations))
	putFloat(opts.Fit.InitialGuess.A)
	putFloat(opts.Fit.InitialGuess.B)
	putFloat(opts.Fit.InitialGuess.X0)
	putFloat(opts.Fit.InitialGuess.Sigma)

	wells := make([]string, 0, len(opts.IndependentValues))
	for w := range opts.IndependentValues {
		wells = append(wells, w)
	}
	sort.Strings(wells)

	for _, w := range wells {
		putString(w)
		putFloat(opts.IndependentValues[w])
		s := samples[w]
		putFloat(float64(len(s)))
		for _, p := range s {
			putFloat(p.X)
			putFloat(p.Y)
		}
	}

	return fmt.Sprintf("%016x", d.Sum64())
}

// DatasetFingerprint is Fingerprint for runs that start from a calibration
// dataset instead of raw traces.
func DatasetFingerprint(opts Options, points []types.CalibrationPoint) string {
	s := make(types.Sample, len(points))
	for i, p := range points {
		s[i] = types.Point{X: p.Independent, Y: p.Dependent}
	}
	o := opts
	o.IndependentValues = map[string]float64{"": 0}
	return Fingerprint(o, map[string]types.Sample{"": s})
}
