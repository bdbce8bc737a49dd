package events

import "encoding/json"

// Event names published by the daemon.
const (
	WellProcessed = "well.processed"
	RunCompleted  = "run.completed"
	RunFailed     = "run.failed"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// WellProcessedEvent is the payload of well.processed.
type WellProcessedEvent struct {
	RunID      string  `json:"runId"`
	Well       string  `json:"well"`
	Ct         float64 `json:"ct"`
	DRFU       float64 `json:"drfu"`
	Detected   bool    `json:"detected"`
	Iterations int     `json:"iterations"`
	Ts         int64   `json:"ts"`
}

// RunCompletedEvent is the payload of run.completed.
type RunCompletedEvent struct {
	RunID       string   `json:"runId"`
	Fingerprint string   `json:"fingerprint"`
	Method      string   `json:"method"`
	Slope       float64  `json:"slope"`
	Intercept   float64  `json:"intercept"`
	Efficiency  *float64 `json:"efficiency,omitempty"`
	Ts          int64    `json:"ts"`
}

// RunFailedEvent is the payload of run.failed.
type RunFailedEvent struct {
	RunID string `json:"runId"`
	Kind  string `json:"kind,omitempty"`
	Stage string `json:"stage,omitempty"`
	Well  string `json:"well,omitempty"`
	Error string `json:"error"`
	Ts    int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.WellProcessedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Well, payload.Ct)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
