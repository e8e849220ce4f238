package events

import "encoding/json"

// Event name constants
const (
	ControllerState  = "controller.state"
	CalibrationStep  = "calibration.step"
	BoundaryStop     = "boundary.stop"
	ScheduleUpcoming = "schedule.upcoming"
	ScheduleError    = "schedule.error"
)

// Event is a generic SSE event from the daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// StateEvent is the typed payload for controller.state.
type StateEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
	Ts   int64  `json:"ts"`
}

// CalibrationStepEvent is the typed payload for calibration.step.
type CalibrationStepEvent struct {
	Step   string `json:"step"`
	Prompt string `json:"prompt,omitempty"`
	Ts     int64  `json:"ts"`
}

// BoundaryStopEvent is the typed payload for boundary.stop.
type BoundaryStopEvent struct {
	Position uint32 `json:"position"`
	Bound    string `json:"bound"` // "upper" or "lower"
	Ts       int64  `json:"ts"`
}

// ScheduleEvent is the typed payload for schedule.upcoming and
// schedule.error.
type ScheduleEvent struct {
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified type T.
// If Data is empty, it returns the zero value of T with a nil error.
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
