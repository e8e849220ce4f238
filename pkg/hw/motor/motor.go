// Package motor drives the window-covering motor. The controller only
// depends on the Motor interface; the real implementation is a 4-wire
// stepper bit-banged over GPIO.
package motor

// Direction of travel. Up winds the covering toward its physical top,
// which corresponds to numerically smaller position-sensor values.
type Direction int

const (
	DirUp Direction = iota
	DirDown
)

func (d Direction) String() string {
	if d == DirUp {
		return "up"
	}
	return "down"
}

// ContinuousSteps is passed to Step for open-ended motion that is only
// terminated by an explicit Stop.
const ContinuousSteps = ^uint32(0)

// Motor is the command interface the motion controller uses.
type Motor interface {
	SetDirection(d Direction)
	// SetSpeed sets the stepping rate in steps per second.
	SetSpeed(stepsPerSecond uint32)
	// Step starts moving the given number of steps in the configured
	// direction. It returns immediately; the motion itself runs in the
	// background until finished or stopped.
	Step(count uint32)
	IsMoving() bool
	Stop()
}
