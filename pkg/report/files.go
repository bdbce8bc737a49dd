package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pcran/pcran/pkg/compress"
	"github.com/pcran/pcran/pkg/types"
)

// Output file names inside the results directory.
const (
	SignalTableFile = "cts.tsv"
	ResultFile      = "result.json"
	CurvesFile      = "curves.json"
)

// PrepareDir makes sure dir exists. With clean set, outputs of an earlier run
// are removed first. Anything else in dir is left alone.
func PrepareDir(dir string, clean bool) error {
	if clean {
		for _, name := range OutputFiles() {
			path := filepath.Join(dir, name)
			info, err := os.Lstat(path)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to stat %s", path)
			}
			if !info.Mode().IsRegular() {
				continue
			}
			if err := os.Remove(path); err != nil {
				return pkgerrors.Wrapf(err, "failed to clean %s", path)
			}
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create %s", dir)
	}
	return nil
}

// OutputFiles lists every file name WriteAll may create, including the curve
// archive under each supported codec.
func OutputFiles() []string {
	names := []string{SignalTableFile, ResultFile}
	for _, n := range compress.Names {
		codec, err := compress.ByName(n)
		if err != nil {
			continue
		}
		names = append(names, CurvesFile+codec.Extension())
	}
	return names
}

// WriteSignalTable writes one tab separated row per well:
//
//	well<TAB><xName><TAB>ct<TAB>drfu
//
// with the raw (untransformed) independent value.
func WriteSignalTable(w io.Writer, xName string, wells []types.WellResult) error {
	if _, err := fmt.Fprintf(w, "well\t%s\tct\tdrfu\n", xName); err != nil {
		return err
	}
	for _, wr := range wells {
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			wr.Well,
			formatFloat(wr.Independent),
			formatFloat(wr.Signal.X),
			formatFloat(wr.Signal.Y),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteResultJSON writes res as indented JSON. Per-well curves are left out;
// they go to the curve archive.
func WriteResultJSON(w io.Writer, res *types.Result) error {
	slim := *res
	slim.Wells = make([]types.WellResult, len(res.Wells))
	for i, wr := range res.Wells {
		wr.Sample = nil
		wr.Fitted = types.Curve{}
		wr.Derivative = types.Curve{}
		slim.Wells[i] = wr
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&slim)
}

// WriteAll writes every output of res into dir and returns the paths written.
// The signal table and the curve archive are only written for runs that
// analysed wells.
func WriteAll(dir string, res *types.Result, xName string, codec compress.Codec) ([]string, error) {
	var written []string

	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to open file %s", path)
		}
		defer func(fp *os.File) {
			err := fp.Close()
			if err != nil {
				logrus.Warnf("failed to close file %s", path)
			}
		}(fp)

		if err := fn(fp); err != nil {
			return pkgerrors.Wrapf(err, "failed to write %s", path)
		}
		written = append(written, path)
		return nil
	}

	if len(res.Wells) > 0 {
		if err := write(SignalTableFile, func(w io.Writer) error {
			return WriteSignalTable(w, xName, res.Wells)
		}); err != nil {
			return written, err
		}
		if err := write(CurvesFile+codec.Extension(), func(w io.Writer) error {
			return WriteCurves(w, res, codec)
		}); err != nil {
			return written, err
		}
	}

	if err := write(ResultFile, func(w io.Writer) error {
		return WriteResultJSON(w, res)
	}); err != nil {
		return written, err
	}

	return written, nil
}
