package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcran/pcran/pkg/compress"
	"github.com/pcran/pcran/pkg/types"
)

func testResult() *types.Result {
	return &types.Result{
		RunID:       "run-1",
		Fingerprint: "00000000deadbeef",
		XLabel:      "log(conc)",
		YLabel:      "Ct",
		Wells: []types.WellResult{
			{
				Well:        "A1",
				Independent: 1,
				Sample:      types.Sample{{X: 1, Y: 2}, {X: 2, Y: 4}},
				Fitted:      types.Curve{X: []float64{1, 1.5, 2}, Y: []float64{2, 3, 4}},
				Derivative:  types.Curve{X: []float64{1.25, 1.75}, Y: []float64{2, 2}},
				Signal:      types.SignalPoint{X: 25.5, Y: 1234, Detected: true},
			},
			{
				Well:        "A2",
				Independent: 0.1,
				Signal:      types.SignalPoint{},
			},
		},
		Dataset: []types.CalibrationPoint{{Independent: 0, Dependent: 25.5}, {Independent: -1, Dependent: 0}},
		Regression: types.RegressionResult{
			Method: "lsq", Title: "Least squares method",
			Slope: -3.3, Intercept: 25, SlopeError: 0.1, InterceptError: 0.2,
			X: []float64{0, -1}, Y: []float64{25.5, 0},
		},
		Efficiency: &types.EfficiencyResult{Percent: 100.9, ErrorPercent: 4.2},
	}
}

func TestWriteSignalTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSignalTable(&buf, "conc", testResult().Wells))

	assert.Equal(t, "well\tconc\tct\tdrfu\nA1\t1\t25.5\t1234\nA2\t0.1\t0\t0\n", buf.String())
}

func TestWriteResultJSONOmitsCurves(t *testing.T) {
	res := testResult()
	var buf bytes.Buffer
	require.NoError(t, WriteResultJSON(&buf, res))

	var got types.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, res.Regression, got.Regression)
	assert.Equal(t, *res.Efficiency, *got.Efficiency)
	require.Len(t, got.Wells, 2)
	assert.Empty(t, got.Wells[0].Fitted.X)
	assert.Empty(t, got.Wells[0].Sample)
	assert.Equal(t, res.Wells[0].Signal, got.Wells[0].Signal)

	// The caller's result is untouched.
	assert.Len(t, res.Wells[0].Fitted.X, 3)
}

func TestCurvesRoundTrip(t *testing.T) {
	res := testResult()
	for _, name := range compress.Names {
		t.Run(name, func(t *testing.T) {
			codec, err := compress.ByName(name)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, WriteCurves(&buf, res, codec))

			a, err := ReadCurves(&buf, codec)
			require.NoError(t, err)
			assert.Equal(t, name, a.Codec)
			assert.Equal(t, "run-1", a.RunID)
			require.Len(t, a.Wells, 2)
			assert.Equal(t, res.Wells[0].Fitted, a.Wells[0].Fitted)
			assert.Equal(t, res.Wells[0].Derivative, a.Wells[0].Derivative)
			assert.Equal(t, res.Wells[0].Sample, a.Wells[0].Sample)
		})
	}
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	require.NoError(t, os.MkdirAll(dir, 0755))
	stale := filepath.Join(dir, "curves.json.lz4")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))

	require.NoError(t, PrepareDir(dir, true))
	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err), "stale output must be removed")

	written, err := WriteAll(dir, testResult(), "conc", compress.NewZstdCodec())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, SignalTableFile),
		filepath.Join(dir, "curves.json.zst"),
		filepath.Join(dir, ResultFile),
	}, written)

	a, err := ReadCurvesFile(filepath.Join(dir, "curves.json.zst"))
	require.NoError(t, err)
	assert.Equal(t, compress.Zstd, a.Codec)

	table, err := os.ReadFile(filepath.Join(dir, SignalTableFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(table), "well\tconc\tct\tdrfu\n"))
}

func TestWriteAllDatasetOnly(t *testing.T) {
	dir := t.TempDir()
	res := testResult()
	res.Wells = nil

	written, err := WriteAll(dir, res, "conc", compress.NewNoOpCodec())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, ResultFile)}, written)
}

func TestPrepareDirKeepsContents(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0644))

	require.NoError(t, PrepareDir(dir, false))
	_, err := os.Stat(keep)
	assert.NoError(t, err)
}

func TestPrepareDirCleanRemovesOnlyOutputs(t *testing.T) {
	dir := t.TempDir()

	deep := filepath.Join(dir, "src", "deep", "data.xlsx")
	require.NoError(t, os.MkdirAll(filepath.Dir(deep), 0755))
	require.NoError(t, os.WriteFile(deep, []byte("x"), 0644))
	conf := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(conf, []byte("{}"), 0644))

	outputs := []string{SignalTableFile, ResultFile, CurvesFile, "curves.json.zst", "curves.json.s2"}
	for _, name := range outputs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	require.NoError(t, PrepareDir(dir, true))

	for _, path := range []string{deep, conf} {
		_, err := os.Stat(path)
		assert.NoErrorf(t, err, "%s must survive cleaning", path)
	}
	for _, name := range outputs {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.Truef(t, os.IsNotExist(err), "%s must be removed", name)
	}
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	PrintSummary(&buf, testResult())
	out := buf.String()

	assert.Contains(t, out, "Least squares method:")
	assert.Contains(t, out, "Fitted line: Ct = -3.30*log(conc) +25.00")
	assert.Contains(t, out, "E = 100.9 ± 4.2 %")
	assert.Contains(t, out, "✔ A1")
	assert.Contains(t, out, "✘ A2")
}
