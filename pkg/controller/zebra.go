package controller

import (
	"github.com/sirupsen/logrus"
)

// zebraOffsetLocked nudges zebra-style slats by one offset to toggle
// between open and closed stripes. Near a travel bound the direction
// is forced away from it; in the middle of the travel the moves
// alternate so repeated double-clicks toggle back and forth. Caller
// holds mu.
func (c *Controller) zebraOffsetLocked() {
	offset := c.sensor.ZebraOffset()
	if offset == 0 {
		return
	}

	current := c.sensor.Read()
	minPos := c.sensor.MinPosition()
	maxPos := c.sensor.MaxPosition()

	var up bool
	switch {
	case current <= minPos+offset:
		up = false
	case current >= maxPos-offset:
		up = true
	default:
		up = !c.lastZebraUp
	}

	var target uint32
	if up {
		target = current - offset
		if target < minPos {
			target = minPos
		}
	} else {
		target = current + offset
		if target > maxPos {
			target = maxPos
		}
	}
	c.lastZebraUp = up

	logrus.WithFields(logrus.Fields{
		"offset": offset,
		"up":     up,
		"target": target,
	}).Info("zebra offset move")

	if err := c.moveToPositionLocked(target); err != nil {
		logrus.WithError(err).Warn("zebra move refused")
	}
}
