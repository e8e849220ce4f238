package controller

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/events"
	"github.com/blindd/blindd/pkg/sensor"
)

// Calibrate stops any motion and enters the guided calibration
// workflow, prompting for the upper position first.
func (c *Controller) Calibrate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calibrateLocked()
}

func (c *Controller) calibrateLocked() {
	logrus.Info("entering calibration mode")
	c.stopLocked()
	c.setStateLocked(Calibrating)

	c.stepPrompt = c.sensor.StartStepCalibration()
	c.publishStepLocked(c.sensor.Step())
}

// CalibrationStep captures the current position for the active
// calibration step and advances the workflow. Exposed so the HTTP API
// can drive calibration the same way a button click does.
func (c *Controller) CalibrationStep() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Calibrating || c.stepPrompt == nil {
		return ErrNotCalibrating
	}
	c.calibrationStepLocked()
	return nil
}

// CancelCalibration aborts the workflow and returns to Idle. Prior
// calibration stays in effect.
func (c *Controller) CancelCalibration() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Calibrating {
		return ErrNotCalibrating
	}
	logrus.Info("calibration aborted")
	c.stepPrompt = nil
	c.stopLocked()
	return nil
}

// calibrationStepLocked is the shared click/API path: save the sample
// for the active step, advance, and exit on completion.
func (c *Controller) calibrationStepLocked() {
	position := c.sensor.Read()
	if err := c.sensor.SaveStep(position); err != nil {
		// Out-of-order capture: the step sequence continues, but the
		// previous bounds stay in effect and the operator is told.
		logrus.WithError(err).Warn("calibration input rejected")
	}

	next := c.sensor.NextStep()
	c.publishStepLocked(next)

	if next == sensor.StepComplete {
		logrus.Info("calibration completed")
		c.stepPrompt = nil
		c.autoCalibrate = !c.sensor.IsCalibrated()
		c.stopLocked()
		return
	}

	logrus.WithFields(logrus.Fields{
		"step":   next,
		"prompt": c.stepPrompt(next),
	}).Info("calibration step")
}

func (c *Controller) publishStepLocked(step sensor.Step) {
	if c.hub == nil {
		return
	}
	prompt := ""
	if c.stepPrompt != nil {
		prompt = c.stepPrompt(step)
	}
	c.hub.Publish(events.CalibrationStep, events.CalibrationStepEvent{
		Step:   step.String(),
		Prompt: prompt,
		Ts:     time.Now().Unix(),
	})
}
