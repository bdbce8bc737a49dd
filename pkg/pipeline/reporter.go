package pipeline

import (
	"github.com/sirupsen/logrus"

	"github.com/pcran/pcran/pkg/types"
)

// Reporter observes a pipeline run. Calls for different wells may arrive
// concurrently and in any order.
type Reporter interface {
	WellProcessed(runID string, w types.WellResult)
	RunCompleted(res *types.Result)
	RunFailed(runID string, err error)
}

// LogReporter logs run progress with logrus.
type LogReporter struct {
	Logger logrus.FieldLogger
}

var _ Reporter = &LogReporter{}

func (l *LogReporter) logger() logrus.FieldLogger {
	if l.Logger == nil {
		return logrus.StandardLogger()
	}
	return l.Logger
}

func (l *LogReporter) WellProcessed(runID string, w types.WellResult) {
	entry := l.logger().WithFields(logrus.Fields{
		"run":        runID,
		"well":       w.Well,
		"ct":         w.Signal.X,
		"drfu":       w.Signal.Y,
		"iterations": w.Iterations,
	})
	if !w.Signal.Detected {
		entry.Warnf("%s: fitted curve never crosses the threshold", w.Well)
		return
	}
	entry.Infof("%s data fitted: Ct = %.2f; drfu = %.0f", w.Well, w.Signal.X, w.Signal.Y)
}

func (l *LogReporter) RunCompleted(res *types.Result) {
	l.logger().WithFields(logrus.Fields{
		"run":         res.RunID,
		"fingerprint": res.Fingerprint,
		"method":      res.Regression.Method,
		"slope":       res.Regression.Slope,
		"intercept":   res.Regression.Intercept,
	}).Info("calibration run completed")
}

func (l *LogReporter) RunFailed(runID string, err error) {
	l.logger().WithField("run", runID).WithError(err).Error("calibration run failed")
}

// Reporters fans out every call to each of its members.
type Reporters []Reporter

var _ Reporter = Reporters{}

func (rs Reporters) WellProcessed(runID string, w types.WellResult) {
	for _, r := range rs {
		r.WellProcessed(runID, w)
	}
}

func (rs Reporters) RunCompleted(res *types.Result) {
	for _, r := range rs {
		r.RunCompleted(res)
	}
}

func (rs Reporters) RunFailed(runID string, err error) {
	for _, r := range rs {
		r.RunFailed(runID, err)
	}
}
