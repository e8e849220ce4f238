package sensor

import (
	"github.com/sirupsen/logrus"
)

// Persisted layout, namespace "position_sensor". Note the naming: the
// upper physical position maps to the numerically smaller sensor
// value, so upper_position becomes min_position and lower_position
// becomes max_position. Kept this way on purpose; renaming would
// silently reverse direction behavior for existing devices.
const (
	Namespace = "position_sensor"

	keyUpperPosition = "upper_position"
	keyLowerPosition = "lower_position"
	keyZebraOffset   = "zebra_offset"
	keyZebraEnabled  = "zebra_enabled"
)

// Defaults used when no persisted values exist yet.
const (
	defaultUpperPosition = 0
	defaultLowerPosition = 4095
	defaultZebraOffset   = 100
)

// Step is one stage of the guided calibration workflow.
type Step int

const (
	StepUpper Step = iota
	StepLower
	StepZebraOffset
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepUpper:
		return "upper"
	case StepLower:
		return "lower"
	case StepZebraOffset:
		return "zebra-offset"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// StepPrompt maps a calibration step to its operator prompt. Pure
// function, no side effects.
func StepPrompt(s Step) string {
	switch s {
	case StepUpper:
		return "Move the covering to its upper position, then press a button"
	case StepLower:
		return "Move the covering to its lower position, then press a button"
	case StepZebraOffset:
		return "Move the covering by one zebra offset, then press a button"
	case StepComplete:
		return "Calibration complete"
	default:
		return "Unknown calibration step"
	}
}

type calibrationSession struct {
	step         Step
	upper        uint32
	lower        uint32
	zebraOffset  uint32
	zebraEnabled bool
}

// StartStepCalibration loads previously persisted calibration values
// (falling back to factory defaults), resets the workflow to the upper
// step, and returns the step-description resolver.
func (r *Reader) StartStepCalibration() func(Step) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.st.GetU32(keyUpperPosition); ok {
		r.cal.upper = v
	} else {
		r.cal.upper = defaultUpperPosition
	}
	if v, ok := r.st.GetU32(keyLowerPosition); ok {
		r.cal.lower = v
	} else {
		r.cal.lower = defaultLowerPosition
	}
	if v, ok := r.st.GetU32(keyZebraOffset); ok {
		r.cal.zebraOffset = v
	} else {
		r.cal.zebraOffset = defaultZebraOffset
	}

	r.cal.step = StepUpper

	logrus.WithField("zebraEnabled", r.cal.zebraEnabled).Info("step calibration started")

	return StepPrompt
}

// Step returns the active calibration step.
func (r *Reader) Step() Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cal.step
}

// NextStep advances the workflow: upper -> lower -> (zebra offset when
// enabled) -> complete. Once complete it stays complete. Reaching
// complete flushes the captured values to durable storage.
func (r *Reader) NextStep() Step {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.cal.step {
	case StepUpper:
		r.cal.step = StepLower
	case StepLower:
		if r.cal.zebraEnabled {
			r.cal.step = StepZebraOffset
		} else {
			r.cal.step = StepComplete
		}
	case StepZebraOffset:
		r.cal.step = StepComplete
	default:
		r.cal.step = StepComplete
	}

	if r.cal.step == StepComplete {
		r.persistLocked()
	}

	logrus.WithField("step", r.cal.step).Info("calibration step advanced")
	return r.cal.step
}

// SaveStep records the sampled position for the active step. At the
// lower step the captured pair is committed as the live calibration;
// out-of-order capture (upper >= lower) is rejected so the caller can
// surface it, and the previous calibration stays in effect.
func (r *Reader) SaveStep(position uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.cal.step {
	case StepUpper:
		r.cal.upper = position
		logrus.WithField("position", position).Info("upper position captured")
	case StepLower:
		r.cal.lower = position
		logrus.WithField("position", position).Info("lower position captured")
		if err := r.setCalibrationLocked(r.cal.upper, r.cal.lower); err != nil {
			return err
		}
	case StepZebraOffset:
		// The covering sits at the lower bound when this step starts,
		// so the offset is the distance moved from it.
		if position >= r.cal.lower {
			r.cal.zebraOffset = position - r.cal.lower
		} else {
			r.cal.zebraOffset = r.cal.lower - position
		}
		logrus.WithField("offset", r.cal.zebraOffset).Info("zebra offset captured")
	case StepComplete:
		r.persistLocked()
	}
	return nil
}

// persistLocked flushes the calibration session to durable storage.
// Failures are logged but non-fatal: the in-memory state remains
// authoritative for the running session.
func (r *Reader) persistLocked() {
	r.st.SetU32(keyUpperPosition, r.cal.upper)
	r.st.SetU32(keyLowerPosition, r.cal.lower)
	r.st.SetU32(keyZebraOffset, r.cal.zebraOffset)
	var zebra uint32
	if r.cal.zebraEnabled {
		zebra = 1
	}
	r.st.SetU32(keyZebraEnabled, zebra)

	if err := r.st.Commit(); err != nil {
		logrus.WithError(err).Error("failed to persist calibration data")
		return
	}
	logrus.Info("calibration data persisted")
}
