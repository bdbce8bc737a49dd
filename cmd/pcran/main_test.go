package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcran/pcran/pkg/curve"
	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/report"
	"github.com/pcran/pcran/pkg/types"
)

func writeWorkspace(t *testing.T) (dir, conf string) {
	t.Helper()
	dir = t.TempDir()

	var b strings.Builder
	b.WriteString("Well,Cycle,dRn\n")
	var wells []string
	var xs []float64
	for k := 0; k < 4; k++ {
		well := fmt.Sprintf("D%d", k+1)
		p := types.FitParameters{A: 4e4, B: 4e4, X0: 33 - 3.3219*float64(k), Sigma: 2.8}
		for c := 1; c <= 40; c++ {
			fmt.Fprintf(&b, "%s,%d,%g\n", well, c, curve.Eval(p, float64(c)))
		}
		wells = append(wells, well)
		xs = append(xs, math.Pow(10, float64(k)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plate.csv"), []byte(b.String()), 0644))

	raw, err := json.Marshal(map[string]any{
		"filename":         filepath.Join(dir, "plate.csv"),
		"wells":            wells,
		"x":                xs,
		"outputDir":        filepath.Join(dir, "out"),
		"curveCompression": "lz4",
	})
	require.NoError(t, err)
	conf = filepath.Join(dir, "pcran.json")
	require.NoError(t, os.WriteFile(conf, raw, 0644))
	return dir, conf
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir, conf := writeWorkspace(t)

	out, err := execute(t, "run", "-c", conf, "--json", "-l", "error")
	require.NoError(t, err, out)

	var res types.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Wells, 4)
	assert.InDelta(t, -3.3219, res.Regression.Slope, 0.05)

	for _, name := range []string{report.SignalTableFile, report.ResultFile, report.CurvesFile + ".lz4"} {
		assert.FileExists(t, filepath.Join(dir, "out", name))
	}

	out, err = execute(t, "inspect", "-l", "error", filepath.Join(dir, "out", report.CurvesFile+".lz4"))
	require.NoError(t, err)
	assert.Contains(t, out, "D4")
}

func TestRunCommandOverrides(t *testing.T) {
	_, conf := writeWorkspace(t)

	out, err := execute(t, "run", "-c", conf, "--json", "--no-output", "--y", "drfu", "--no-eff", "-l", "error")
	require.NoError(t, err, out)

	var res types.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "dRn'", res.YLabel)
	assert.Nil(t, res.Efficiency)

	// One well per concentration leaves hi2 without error bars.
	_, err = execute(t, "run", "-c", conf, "--no-output", "--method", "hi2", "-l", "error")
	assert.ErrorIs(t, err, pcrerr.ErrZeroErrorNotSupported)

	_, err = execute(t, "run", "-c", conf, "--method", "ransac", "-l", "error")
	assert.ErrorIs(t, err, pcrerr.ErrUnknownRegressionMethod)
}

func TestRegressCommand(t *testing.T) {
	dir := t.TempDir()
	points := filepath.Join(dir, "cts.txt")
	require.NoError(t, os.WriteFile(points, []byte("# conc ct\n1 35\n10 31.7\n100 28.3\n1000 25\n"), 0644))

	out, err := execute(t, "regress", "-c", filepath.Join(dir, "absent.json"), "--json", "-l", "error", points)
	require.NoError(t, err, out)

	var res types.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, -3.34, res.Regression.Slope, 1e-9)
	require.NotNil(t, res.Efficiency)
}

func TestFitCommand(t *testing.T) {
	dir, _ := writeWorkspace(t)

	out, err := execute(t, "fit", "-c", filepath.Join(dir, "absent.json"), "--json", "-l", "error", filepath.Join(dir, "plate.csv"), "D2")
	require.NoError(t, err, out)

	var wr types.WellResult
	require.NoError(t, json.Unmarshal([]byte(out), &wr))
	assert.Equal(t, "D2", wr.Well)
	assert.InDelta(t, 33-3.3219, wr.Params.X0, 0.01)

	_, err = execute(t, "fit", "-c", filepath.Join(dir, "absent.json"), "-l", "error", filepath.Join(dir, "plate.csv"), "H12")
	assert.Error(t, err)
}
