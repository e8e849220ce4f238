// Package controller is the motion state machine: it consumes semantic
// button events and position readings, issues motor commands, manages
// the guided calibration workflow, and enforces travel limits during
// continuous motion.
package controller

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/button"
	"github.com/blindd/blindd/pkg/events"
	"github.com/blindd/blindd/pkg/hw/debounce"
	"github.com/blindd/blindd/pkg/hw/motor"
	"github.com/blindd/blindd/pkg/sensor"
)

// State is the controller's mutually exclusive operating mode.
type State int

const (
	Idle State = iota
	MovingUp
	MovingDown
	Calibrating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case MovingUp:
		return "moving-up"
	case MovingDown:
		return "moving-down"
	case Calibrating:
		return "calibrating"
	default:
		return "unknown"
	}
}

var (
	// ErrNotCalibrated is returned for operations that need calibrated
	// travel bounds. The controller stays in its current state.
	ErrNotCalibrated = pkgerrors.New("not calibrated")
	// ErrCalibrating is returned for motion requested while the
	// calibration workflow is active.
	ErrCalibrating = pkgerrors.New("calibration in progress")
	// ErrNotCalibrating is returned for calibration-workflow operations
	// issued while no calibration is in progress.
	ErrNotCalibrating = pkgerrors.New("no calibration in progress")
)

const defaultBoundaryInterval = 100 * time.Millisecond

// Controller owns ControllerState and the calibration workflow
// orchestration. All mutation happens under one mutex because both the
// button consumer goroutine and HTTP handlers drive it.
type Controller struct {
	mu sync.Mutex

	motor  motor.Motor
	sensor *sensor.Reader
	hub    *events.Hub

	state            State
	defaultSpeed     uint32
	zebraEnabled     bool
	boundaryInterval time.Duration

	buttonHeld     bool
	boundaryActive bool
	stepPrompt     func(sensor.Step) string
	lastZebraUp    bool
	autoCalibrate  bool

	// motionGen invalidates stale arrival watchers whenever a new
	// motion or stop supersedes them.
	motionGen uint64
}

// Option adjusts controller construction.
type Option func(*Controller)

// WithEventHub makes the controller publish state and calibration
// events to hub.
func WithEventHub(hub *events.Hub) Option {
	return func(c *Controller) { c.hub = hub }
}

// WithZebraSupport enables the zebra-offset double-click path.
func WithZebraSupport(enabled bool) Option {
	return func(c *Controller) { c.zebraEnabled = enabled }
}

// WithDefaultSpeed sets the motor speed used for all motion commands.
func WithDefaultSpeed(stepsPerSecond uint32) Option {
	return func(c *Controller) { c.defaultSpeed = stepsPerSecond }
}

// WithBoundaryInterval overrides the boundary-check poll interval,
// mainly for tests.
func WithBoundaryInterval(d time.Duration) Option {
	return func(c *Controller) { c.boundaryInterval = d }
}

func New(m motor.Motor, r *sensor.Reader, opts ...Option) *Controller {
	c := &Controller{
		motor:            m,
		sensor:           r,
		state:            Idle,
		defaultSpeed:     500,
		boundaryInterval: defaultBoundaryInterval,
		// The first mid-range zebra toggle moves down.
		lastZebraUp: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.autoCalibrate = !r.IsCalibrated()
	if c.autoCalibrate {
		logrus.Warn("no position calibration found, calibration required before positional moves")
	}
	logrus.WithField("calibrated", r.IsCalibrated()).Info("controller initialized")

	return c
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsMoving reports whether the motor is currently moving.
func (c *Controller) IsMoving() bool {
	return c.motor.IsMoving()
}

// AutoCalibrate reports whether the controller booted without a stored
// calibration, hinting the operator to run one.
func (c *Controller) AutoCalibrate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoCalibrate
}

// setStateLocked transitions the state machine and publishes the
// transition. Caller holds mu.
func (c *Controller) setStateLocked(to State) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to

	logrus.WithFields(logrus.Fields{
		"from": from,
		"to":   to,
	}).Info("controller state changed")

	if c.hub != nil {
		c.hub.Publish(events.ControllerState, events.StateEvent{
			From: from.String(),
			To:   to.String(),
			Ts:   time.Now().Unix(),
		})
	}
}

// HandleButton consumes one semantic button event. It is registered as
// the button coordinator's callback and is also safe to call directly.
func (c *Controller) HandleButton(ev button.Event) {
	logrus.WithFields(logrus.Fields{
		"kind":   ev.Kind,
		"button": ev.Button,
	}).Debug("handling button event")

	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case button.SimultaneousPress:
		if c.state == Calibrating {
			logrus.Info("calibration aborted")
			c.stepPrompt = nil
			c.stopLocked()
		} else {
			c.calibrateLocked()
		}

	case button.SingleClick:
		if c.state == Calibrating && c.stepPrompt != nil {
			c.calibrationStepLocked()
		} else if ev.Button == debounce.ButtonUp {
			if err := c.gotoTopLocked(); err != nil {
				logrus.WithError(err).Warn("goto top refused")
			}
		} else if ev.Button == debounce.ButtonDown {
			if err := c.gotoBottomLocked(); err != nil {
				logrus.WithError(err).Warn("goto bottom refused")
			}
		}

	case button.DoubleClick:
		if c.state == Calibrating {
			return
		}
		if c.zebraEnabled && c.sensor.IsCalibrated() && c.sensor.ZebraOffset() > 0 {
			c.zebraOffsetLocked()
		} else if err := c.setPercentageLocked(50); err != nil {
			logrus.WithError(err).Warn("double-click move refused")
		}

	case button.LongPressStart:
		if c.state == Calibrating {
			return
		}
		c.buttonHeld = true
		var err error
		if ev.Button == debounce.ButtonUp {
			err = c.moveUpLocked()
		} else {
			err = c.moveDownLocked()
		}
		if err != nil {
			logrus.WithError(err).Warn("long-press move refused")
			c.buttonHeld = false
			return
		}

	case button.Release:
		if c.buttonHeld {
			c.stopLocked()
		}
	}
}
