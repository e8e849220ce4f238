package controller

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/events"
)

// startBoundaryTaskLocked spawns the boundary watchdog for continuous
// motion, whether started by a held button or an API request. At most
// one watchdog runs at a time; it exits once the controller leaves a
// moving state or the motor stops. Caller holds mu.
func (c *Controller) startBoundaryTaskLocked() {
	if c.boundaryActive {
		return
	}
	if !c.sensor.IsCalibrated() {
		logrus.Debug("no calibrated bounds, boundary watchdog not started")
		return
	}
	c.boundaryActive = true
	go c.boundaryLoop()
}

func (c *Controller) boundaryLoop() {
	ticker := time.NewTicker(c.boundaryInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		moving := c.state == MovingUp || c.state == MovingDown
		if !moving || !c.motor.IsMoving() {
			c.boundaryActive = false
			c.mu.Unlock()
			return
		}
		if c.checkBoundariesAndStopLocked() {
			c.boundaryActive = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// checkBoundariesAndStopLocked stops motion that has reached or passed
// a calibrated travel bound. Returns true if a stop was issued. Caller
// holds mu.
func (c *Controller) checkBoundariesAndStopLocked() bool {
	if !c.sensor.IsCalibrated() || !c.motor.IsMoving() {
		return false
	}

	position := c.sensor.Read()
	minPos := c.sensor.MinPosition()
	maxPos := c.sensor.MaxPosition()

	var bound string
	switch {
	case c.state == MovingUp && position <= minPos:
		bound = "upper"
	case c.state == MovingDown && position >= maxPos:
		bound = "lower"
	default:
		return false
	}

	logrus.WithFields(logrus.Fields{
		"position": position,
		"bound":    bound,
	}).Info("travel bound reached, stopping")

	c.stopLocked()

	if c.hub != nil {
		c.hub.Publish(events.BoundaryStop, events.BoundaryStopEvent{
			Position: position,
			Bound:    bound,
			Ts:       time.Now().Unix(),
		})
	}
	return true
}
