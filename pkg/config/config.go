// Package config holds the daemon configuration: hardware pin
// assignments, motion parameters, and the movement schedule. The
// schedule is the only part mutated at runtime; everything else is
// read at startup (and on SIGHUP reload).
package config

import "time"

// Schedule maps a cron expression to a target position percentage.
type Schedule struct {
	Cron    string  `yaml:"cron" json:"cron"`
	Percent float64 `yaml:"percent" json:"percent"`
}

type Config interface {
	MockGPIO() bool
	AllowNonRootAccess() bool
	SetAllowNonRootAccess(bool)

	MotorPins() [4]int
	DefaultSpeed() uint32

	ButtonUpPin() int
	ButtonDownPin() int
	LongPress() time.Duration
	DoubleClickWindow() time.Duration

	SensorPowerPin() int
	ADCChannel() int
	SensorStabilization() time.Duration
	StorePath() string

	ZebraEnabled() bool

	Schedules() []Schedule
	SetSchedules([]Schedule)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
