package events

import (
	"errors"
	"time"

	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/pipeline"
	"github.com/pcran/pcran/pkg/types"
)

// Reporter publishes pipeline progress on a hub.
type Reporter struct {
	Hub *EventHub
}

var _ pipeline.Reporter = Reporter{}

func (r Reporter) WellProcessed(runID string, w types.WellResult) {
	r.Hub.Publish(WellProcessed, WellProcessedEvent{
		RunID:      runID,
		Well:       w.Well,
		Ct:         w.Signal.X,
		DRFU:       w.Signal.Y,
		Detected:   w.Signal.Detected,
		Iterations: w.Iterations,
		Ts:         time.Now().Unix(),
	})
}

func (r Reporter) RunCompleted(res *types.Result) {
	ev := RunCompletedEvent{
		RunID:       res.RunID,
		Fingerprint: res.Fingerprint,
		Method:      res.Regression.Method,
		Slope:       res.Regression.Slope,
		Intercept:   res.Regression.Intercept,
		Ts:          time.Now().Unix(),
	}
	if res.Efficiency != nil {
		e := res.Efficiency.Percent
		ev.Efficiency = &e
	}
	r.Hub.Publish(RunCompleted, ev)
}

func (r Reporter) RunFailed(runID string, err error) {
	ev := RunFailedEvent{
		RunID: runID,
		Error: err.Error(),
		Ts:    time.Now().Unix(),
	}
	var perr *pcrerr.Error
	if errors.As(err, &perr) {
		ev.Kind = string(perr.Kind)
		ev.Stage = perr.Stage
		ev.Well = perr.Well
	}
	r.Hub.Publish(RunFailed, ev)
}
