// Package sensor produces a stable, calibrated reading of the window
// covering's physical position and owns calibration persistence.
//
// Position convention: the sensor value grows as the covering travels
// down. The calibrated minimum bound therefore corresponds to the top
// extreme and the maximum bound to the bottom extreme.
package sensor

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/hw/adc"
	"github.com/blindd/blindd/pkg/store"
)

// ErrInvalidCalibration is returned when calibration input violates
// min < max ordering. Prior calibration is left untouched.
var ErrInvalidCalibration = pkgerrors.New("invalid calibration: min position must be less than max position")

// Factory defaults used until a calibration completes.
const (
	defaultMinPosition = 100
	defaultMaxPosition = 3900
)

const filterSize = 5

// Reader samples the analog position sensor, smooths the signal, and
// maps raw readings to a calibrated range. All state lives on the
// Reader; there are no package-level caches.
type Reader struct {
	mu  sync.Mutex
	adc adc.Sampler
	st  store.Store

	minPos     uint32
	maxPos     uint32
	calibrated bool
	current    uint32

	filter    [filterSize]uint32
	filterIdx int
	filterLen int

	cal calibrationSession
}

// New creates a Reader and restores any previously persisted
// calibration bounds so the device is usable right after a reboot.
func New(sampler adc.Sampler, st store.Store, zebraEnabled bool) *Reader {
	r := &Reader{
		adc:    sampler,
		st:     st,
		minPos: defaultMinPosition,
		maxPos: defaultMaxPosition,
	}
	r.cal.zebraEnabled = zebraEnabled
	r.cal.step = StepComplete
	r.restore()
	return r
}

// restore loads persisted calibration at boot. Absent or out-of-order
// values leave the factory defaults in place.
func (r *Reader) restore() {
	upper, okU := r.st.GetU32(keyUpperPosition)
	lower, okL := r.st.GetU32(keyLowerPosition)
	if okU && okL && upper < lower {
		r.minPos = upper
		r.maxPos = lower
		r.calibrated = true
		logrus.WithFields(logrus.Fields{
			"min": upper,
			"max": lower,
		}).Info("restored position calibration")
	}
	if off, ok := r.st.GetU32(keyZebraOffset); ok {
		r.cal.zebraOffset = off
	} else {
		r.cal.zebraOffset = defaultZebraOffset
	}
}

// Read powers the sensor, takes one raw sample, and returns the mean
// of the most recent samples clamped to the calibrated bounds. On a
// sample error the last known position is returned.
func (r *Reader) Read() uint32 {
	if err := r.adc.PowerOn(); err != nil {
		logrus.WithError(err).Warn("failed to power on position sensor")
	}
	raw := r.adc.SampleRaw()
	if err := r.adc.PowerOff(); err != nil {
		logrus.WithError(err).Warn("failed to power off position sensor")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if raw < 0 {
		logrus.Warn("position sample failed, returning last known position")
		return r.current
	}

	r.filter[r.filterIdx] = uint32(raw)
	r.filterIdx = (r.filterIdx + 1) % filterSize
	if r.filterLen < filterSize {
		r.filterLen++
	}

	var sum uint32
	for i := 0; i < r.filterLen; i++ {
		sum += r.filter[i]
	}
	v := sum / uint32(r.filterLen)

	if v < r.minPos {
		v = r.minPos
	} else if v > r.maxPos {
		v = r.maxPos
	}

	r.current = v
	logrus.WithField("position", v).Trace("position read")
	return v
}

// Percentage maps the current position onto 0-100. An uncalibrated
// reader fails soft: it warns and returns 0 rather than aborting the
// caller.
func (r *Reader) Percentage() float64 {
	r.mu.Lock()
	calibrated := r.calibrated
	r.mu.Unlock()

	if !calibrated {
		logrus.Warn("position sensor not calibrated")
		return 0
	}

	v := r.Read()

	r.mu.Lock()
	defer r.mu.Unlock()

	if v <= r.minPos {
		return 0
	}
	if v >= r.maxPos {
		return 100
	}
	return float64(v-r.minPos) / float64(r.maxPos-r.minPos) * 100
}

// SetCalibration sets the travel bounds. min >= max is rejected with
// no state change.
func (r *Reader) SetCalibration(minPos, maxPos uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setCalibrationLocked(minPos, maxPos)
}

func (r *Reader) setCalibrationLocked(minPos, maxPos uint32) error {
	if minPos >= maxPos {
		logrus.WithFields(logrus.Fields{
			"min": minPos,
			"max": maxPos,
		}).Error("rejecting invalid calibration bounds")
		return ErrInvalidCalibration
	}

	r.minPos = minPos
	r.maxPos = maxPos
	r.calibrated = true

	logrus.WithFields(logrus.Fields{
		"min": minPos,
		"max": maxPos,
	}).Info("position calibration set")
	return nil
}

func (r *Reader) IsCalibrated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calibrated
}

func (r *Reader) MinPosition() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minPos
}

func (r *Reader) MaxPosition() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxPos
}

func (r *Reader) ZebraOffset() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cal.zebraOffset
}

// CurrentPosition returns the last smoothed reading without sampling.
func (r *Reader) CurrentPosition() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
