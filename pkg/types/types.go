// Package types holds the JSON payload types shared between the
// daemon's HTTP API and its clients.
package types

// Status is the full daemon status returned by GET /status.
type Status struct {
	State         string  `json:"state"`
	Position      uint32  `json:"position"`
	Percent       float64 `json:"percent"`
	Calibrated    bool    `json:"calibrated"`
	Moving        bool    `json:"moving"`
	AutoCalibrate bool    `json:"autoCalibrate"`
	ZebraEnabled  bool    `json:"zebraEnabled"`
	NextRun       string  `json:"nextRun,omitempty"`
	NextPercent   float64 `json:"nextPercent,omitempty"`
	Version       string  `json:"version"`
}

// Position is the reading returned by GET /position.
type Position struct {
	Raw        uint32  `json:"raw"`
	Percent    float64 `json:"percent"`
	Calibrated bool    `json:"calibrated"`
}

// Calibration describes the calibration state and, when a workflow is
// active, the current step and its operator prompt.
type Calibration struct {
	Active      bool   `json:"active"`
	Step        string `json:"step,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Calibrated  bool   `json:"calibrated"`
	MinPosition uint32 `json:"minPosition"`
	MaxPosition uint32 `json:"maxPosition"`
	ZebraOffset uint32 `json:"zebraOffset"`
}

// ConfigSummary is the read-only configuration view returned by
// GET /config.
type ConfigSummary struct {
	MockGPIO       bool   `json:"mockGpio"`
	MotorPins      [4]int `json:"motorPins"`
	DefaultSpeed   uint32 `json:"defaultSpeed"`
	ButtonUpPin    int    `json:"buttonUpPin"`
	ButtonDownPin  int    `json:"buttonDownPin"`
	LongPressMs    int64  `json:"longPressMs"`
	DoubleClickMs  int64  `json:"doubleClickMs"`
	SensorPowerPin int    `json:"sensorPowerPin"`
	ADCChannel     int    `json:"adcChannel"`
	StorePath      string `json:"storePath"`
	ZebraEnabled   bool   `json:"zebraEnabled"`
	ScheduleCount  int    `json:"scheduleCount"`
}
