package motor

import (
	"sync"
	"testing"
	"time"

	"github.com/blindd/blindd/pkg/hw/gpio"
)

var testPins = [stepperPins]int{17, 18, 27, 22}

// recordingDriver captures every pin write so tests can reconstruct
// the coil excitation sequence.
type recordingDriver struct {
	mu     sync.Mutex
	writes []pinWrite
}

type pinWrite struct {
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error { return nil }

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	d.mu.Lock()
	d.writes = append(d.writes, pinWrite{pin, level})
	d.mu.Unlock()
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) { return gpio.Low, nil }
func (d *recordingDriver) Close() error                        { return nil }

// patterns decodes the write log into one coil bitmask per 4-pin
// group, skipping the initial all-low setup writes.
func (d *recordingDriver) patterns(t *testing.T) []int {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.writes)%stepperPins != 0 {
		t.Fatalf("write log length %d is not a multiple of %d", len(d.writes), stepperPins)
	}
	var out []int
	for i := 0; i < len(d.writes); i += stepperPins {
		v := 0
		for j := 0; j < stepperPins; j++ {
			w := d.writes[i+j]
			if w.pin != testPins[j] {
				t.Fatalf("write %d hit pin %d, want %d", i+j, w.pin, testPins[j])
			}
			if w.level == gpio.High {
				v |= 1 << j
			}
		}
		out = append(out, v)
	}
	return out[1:] // drop the constructor's all-low group
}

func newTestStepper(t *testing.T) (*Stepper, *recordingDriver) {
	t.Helper()
	drv := &recordingDriver{}
	s, err := NewStepper(drv, StepperConfig{Pins: testPins, DefaultSpeed: 10000})
	if err != nil {
		t.Fatal(err)
	}
	return s, drv
}

func waitIdle(t *testing.T, s *Stepper) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !s.IsMoving() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("stepper still moving")
}

func TestStepWalksHalfStepSequence(t *testing.T) {
	s, drv := newTestStepper(t)

	s.SetDirection(DirDown)
	s.Step(4)
	waitIdle(t, s)
	s.Stop()

	got := drv.patterns(t)
	want := []int{coilSeq[1], coilSeq[2], coilSeq[3], coilSeq[4], 0}
	if len(got) != len(want) {
		t.Fatalf("patterns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("patterns = %v, want %v", got, want)
		}
	}
}

func TestStepReversesForUp(t *testing.T) {
	s, drv := newTestStepper(t)

	s.SetDirection(DirUp)
	s.Step(2)
	waitIdle(t, s)
	s.Stop()

	got := drv.patterns(t)
	want := []int{coilSeq[7], coilSeq[6], 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("patterns = %v, want %v", got, want)
		}
	}
}

func TestStopInterruptsContinuousMotion(t *testing.T) {
	s, drv := newTestStepper(t)

	s.SetDirection(DirDown)
	s.Step(ContinuousSteps)
	if !s.IsMoving() {
		t.Fatal("stepper not moving after step command")
	}

	time.Sleep(10 * time.Millisecond)
	s.Stop()
	if s.IsMoving() {
		t.Fatal("stepper still moving after stop")
	}

	// Coils must be de-energized after a stop.
	got := drv.patterns(t)
	if got[len(got)-1] != 0 {
		t.Fatalf("final coil pattern = %b, want de-energized", got[len(got)-1])
	}
}

func TestNewMotionPreemptsOld(t *testing.T) {
	s, _ := newTestStepper(t)

	s.SetDirection(DirDown)
	s.Step(ContinuousSteps)
	s.Step(2)
	waitIdle(t, s)

	if s.IsMoving() {
		t.Fatal("stepper moving after bounded motion finished")
	}
}

func TestZeroStepIsNoOp(t *testing.T) {
	s, drv := newTestStepper(t)

	s.Step(0)
	if s.IsMoving() {
		t.Fatal("stepper moving after zero-step command")
	}
	if got := drv.patterns(t); len(got) != 0 {
		t.Fatalf("zero-step command wrote coils: %v", got)
	}
}

func TestZeroSpeedIgnored(t *testing.T) {
	s, _ := newTestStepper(t)

	s.SetSpeed(0)
	if s.delay != speedToDelay(10000) {
		t.Fatal("zero speed changed the step delay")
	}
}
