package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"

	"github.com/pcran/pcran/pkg/compress"
	"github.com/pcran/pcran/pkg/types"
)

// CurveArchive holds the plotted data of a run: every well's raw trace,
// fitted curve, derivative and signal point.
type CurveArchive struct {
	RunID string        `json:"runId"`
	Codec string        `json:"-"`
	Wells []CurveRecord `json:"wells"`
}

type CurveRecord struct {
	Well       string              `json:"well"`
	Params     types.FitParameters `json:"params"`
	Sample     types.Sample        `json:"sample"`
	Fitted     types.Curve         `json:"fitted"`
	Derivative types.Curve         `json:"derivative"`
	Signal     types.SignalPoint   `json:"signal"`
}

// NewCurveArchive collects the curves of res.
func NewCurveArchive(res *types.Result) *CurveArchive {
	a := &CurveArchive{RunID: res.RunID, Wells: make([]CurveRecord, len(res.Wells))}
	for i, wr := range res.Wells {
		a.Wells[i] = CurveRecord{
			Well:       wr.Well,
			Params:     wr.Params,
			Sample:     wr.Sample,
			Fitted:     wr.Fitted,
			Derivative: wr.Derivative,
			Signal:     wr.Signal,
		}
	}
	return a
}

// WriteCurves encodes the curve archive of res as JSON and compresses it
// with codec.
func WriteCurves(w io.Writer, res *types.Result, codec compress.Codec) error {
	b, err := json.Marshal(NewCurveArchive(res))
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode curves")
	}
	compressed, err := codec.Compress(b)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to compress curves with %s", codec.Name())
	}
	_, err = w.Write(compressed)
	return err
}

// ReadCurves reverses WriteCurves.
func ReadCurves(r io.Reader, codec compress.Codec) (*CurveArchive, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read curves")
	}
	b, err := codec.Decompress(compressed)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to decompress curves with %s", codec.Name())
	}

	a := &CurveArchive{}
	if err := json.Unmarshal(b, a); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to decode curves")
	}
	a.Codec = codec.Name()
	return a, nil
}

// ReadCurvesFile reads a curve archive, picking the codec from the file
// extension.
func ReadCurvesFile(path string) (*CurveArchive, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open file %s", path)
	}
	defer fp.Close()

	return ReadCurves(fp, compress.ByExtension(filepath.Ext(path)))
}
