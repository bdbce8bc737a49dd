package ingest

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pcran/pcran/pkg/types"
)

// ReadPointsFile reads a calibration point file from path.
func ReadPointsFile(path string) ([]types.CalibrationPoint, error) {
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

	points, err := ReadPoints(fp)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read %s", path)
	}
	return points, nil
}

// ReadPoints reads whitespace separated "x y" lines. Blank lines and lines
// starting with # are ignored.
func ReadPoints(r io.Reader) ([]types.CalibrationPoint, error) {
	var points []types.CalibrationPoint

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, pkgerrors.Errorf("line %d: expected 2 fields, got %d", line, len(fields))
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d: invalid x", line)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d: invalid y", line)
		}
		points = append(points, types.CalibrationPoint{Independent: x, Dependent: y})
	}
	if err := scanner.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to scan points")
	}
	return points, nil
}
