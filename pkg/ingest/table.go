package ingest

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/types"
)

// Column headers of an amplification table, matched case-insensitively.
const (
	ColumnWell   = "well"
	ColumnCycle  = "cycle"
	ColumnSignal = "drn"
)

const stageRead = "ReadSamples"

// Table is an amplification table keyed by well.
type Table struct {
	Samples map[string]types.Sample
	// Wells lists the wells in the order they first appear.
	Wells []string
	// Skipped counts rows dropped for an empty or NaN signal.
	Skipped int
}

// ReadTable reads an amplification table from path. Files ending in .xlsx,
// .xlsm or .xltx are read as spreadsheets (sheet "" selects the first one);
// anything else is read as CSV.
func ReadTable(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx":
		return ReadXLSX(path, sheet)
	}

	fp, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open file %s", path)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", path)
		}
	}(fp)

	t, err := ReadCSV(fp)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read %s", path)
	}
	return t, nil
}

// ReadCSV reads an amplification table in CSV form.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to parse csv")
	}
	return fromRows(rows)
}

// ReadXLSX reads an amplification table from a spreadsheet.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open workbook %s", path)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Warnf("failed to close workbook %s", path)
		}
	}()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, pkgerrors.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read sheet %s of %s", sheet, path)
	}

	t, err := fromRows(rows)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read sheet %s of %s", sheet, path)
	}
	return t, nil
}

func fromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, pkgerrors.New("table is empty")
	}

	headerMap := make(map[string]int)
	for i, h := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{ColumnWell, ColumnCycle, ColumnSignal} {
		if _, ok := headerMap[req]; !ok {
			return nil, pkgerrors.Errorf("missing required column: %s", req)
		}
	}

	t := &Table{Samples: map[string]types.Sample{}}
	for n, record := range rows[1:] {
		line := n + 2
		get := func(col string) string {
			if idx := headerMap[col]; idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}

		signal := get(ColumnSignal)
		if signal == "" {
			t.Skipped++
			continue
		}
		y, err := strconv.ParseFloat(signal, 64)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d: invalid %s value %q", line, ColumnSignal, signal)
		}
		if math.IsNaN(y) {
			t.Skipped++
			continue
		}

		well := get(ColumnWell)
		if well == "" {
			return nil, pkgerrors.Errorf("line %d: well is empty", line)
		}
		x, err := strconv.ParseFloat(get(ColumnCycle), 64)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d: invalid %s value %q", line, ColumnCycle, get(ColumnCycle))
		}

		if _, ok := t.Samples[well]; !ok {
			t.Wells = append(t.Wells, well)
		}
		t.Samples[well] = append(t.Samples[well], types.Point{X: x, Y: y})
	}

	for _, w := range t.Wells {
		s := t.Samples[w]
		for i := 1; i < len(s); i++ {
			if s[i].X <= s[i-1].X {
				return nil, pcrerr.New(pcrerr.KindDegenerateInput, "cycles are not strictly increasing at cycle %g", s[i].X).
					WithStage(stageRead).
					WithWell(w)
			}
		}
	}

	return t, nil
}
