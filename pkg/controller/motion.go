package controller

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/hw/motor"
)

// MoveToPosition moves toward a target raw position. Motion toward a
// known target self-terminates at the motor layer; the immediate
// boundary check afterwards is a safety backstop, not the primary stop
// mechanism.
func (c *Controller) MoveToPosition(target uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveToPositionLocked(target)
}

func (c *Controller) moveToPositionLocked(target uint32) error {
	if c.state == Calibrating {
		return ErrCalibrating
	}

	current := c.sensor.Read()
	if current == target {
		logrus.WithField("position", target).Info("already at target position")
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"from": current,
		"to":   target,
	}).Info("moving to position")

	// Larger sensor values are physically lower.
	var dir motor.Direction
	var delta uint32
	if target > current {
		dir = motor.DirDown
		delta = target - current
	} else {
		dir = motor.DirUp
		delta = current - target
	}

	c.motor.SetDirection(dir)
	c.motor.SetSpeed(c.defaultSpeed)
	c.motor.Step(delta)

	if dir == motor.DirUp {
		c.setStateLocked(MovingUp)
	} else {
		c.setStateLocked(MovingDown)
	}

	c.motionGen++
	go c.watchArrival(c.motionGen)

	c.checkBoundariesAndStopLocked()
	return nil
}

// watchArrival returns the controller to Idle once a bounded move
// finishes on its own. A newer motion or an explicit stop invalidates
// the watcher via the generation counter.
func (c *Controller) watchArrival(gen uint64) {
	for {
		time.Sleep(50 * time.Millisecond)

		c.mu.Lock()
		if c.motionGen != gen {
			c.mu.Unlock()
			return
		}
		if !c.motor.IsMoving() {
			c.setStateLocked(Idle)
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// MoveUp starts continuous upward motion, stopped only by an explicit
// stop or the boundary check.
func (c *Controller) MoveUp() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveUpLocked()
}

func (c *Controller) moveUpLocked() error {
	if c.state == Calibrating {
		return ErrCalibrating
	}

	logrus.Info("moving up")
	c.motor.SetDirection(motor.DirUp)
	c.motor.SetSpeed(c.defaultSpeed)
	c.motor.Step(motor.ContinuousSteps)
	c.motionGen++
	c.setStateLocked(MovingUp)
	c.startBoundaryTaskLocked()
	return nil
}

// MoveDown starts continuous downward motion.
func (c *Controller) MoveDown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveDownLocked()
}

func (c *Controller) moveDownLocked() error {
	if c.state == Calibrating {
		return ErrCalibrating
	}

	logrus.Info("moving down")
	c.motor.SetDirection(motor.DirDown)
	c.motor.SetSpeed(c.defaultSpeed)
	c.motor.Step(motor.ContinuousSteps)
	c.motionGen++
	c.setStateLocked(MovingDown)
	c.startBoundaryTaskLocked()
	return nil
}

// Stop halts the motor (idempotent) and returns to Idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.motor.IsMoving() {
		logrus.Info("stopping motor")
		c.motor.Stop()
	} else {
		logrus.Debug("motor already stopped")
	}

	c.motionGen++
	c.setStateLocked(Idle)
	c.buttonHeld = false
}

// GotoTop moves to the calibrated minimum bound (physical top).
func (c *Controller) GotoTop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gotoTopLocked()
}

func (c *Controller) gotoTopLocked() error {
	if !c.sensor.IsCalibrated() {
		return ErrNotCalibrated
	}
	minPos := c.sensor.MinPosition()
	logrus.WithField("position", minPos).Info("moving to top")
	return c.moveToPositionLocked(minPos)
}

// GotoBottom moves to the calibrated maximum bound (physical bottom).
func (c *Controller) GotoBottom() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gotoBottomLocked()
}

func (c *Controller) gotoBottomLocked() error {
	if !c.sensor.IsCalibrated() {
		return ErrNotCalibrated
	}
	maxPos := c.sensor.MaxPosition()
	logrus.WithField("position", maxPos).Info("moving to bottom")
	return c.moveToPositionLocked(maxPos)
}

// SetPositionPercentage moves to a percentage of the calibrated
// travel. The input is clamped to 0-100.
func (c *Controller) SetPositionPercentage(pct float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setPercentageLocked(pct)
}

func (c *Controller) setPercentageLocked(pct float64) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	if !c.sensor.IsCalibrated() {
		return ErrNotCalibrated
	}

	minPos := c.sensor.MinPosition()
	maxPos := c.sensor.MaxPosition()
	target := minPos + uint32(float64(maxPos-minPos)*pct/100)

	logrus.WithFields(logrus.Fields{
		"percent": pct,
		"target":  target,
		"min":     minPos,
		"max":     maxPos,
	}).Info("setting position percentage")

	return c.moveToPositionLocked(target)
}
