package controller

import (
	"errors"
	"testing"
	"time"

	"github.com/blindd/blindd/pkg/button"
	"github.com/blindd/blindd/pkg/events"
	"github.com/blindd/blindd/pkg/hw/adc"
	"github.com/blindd/blindd/pkg/hw/debounce"
	"github.com/blindd/blindd/pkg/hw/motor"
	"github.com/blindd/blindd/pkg/sensor"
	"github.com/blindd/blindd/pkg/store"
)

type fixture struct {
	motor  *motor.Fake
	adc    *adc.Fake
	store  *store.Memory
	sensor *sensor.Reader
	ctrl   *Controller
}

func newFixture(t *testing.T, calibrated bool, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		motor: motor.NewFake(),
		adc:   adc.NewFake(2000),
		store: store.NewMemory(),
	}
	f.sensor = sensor.New(f.adc, f.store, false)
	if calibrated {
		if err := f.sensor.SetCalibration(100, 3900); err != nil {
			t.Fatal(err)
		}
	}
	f.ctrl = New(f.motor, f.sensor, opts...)
	return f
}

// settle flushes the smoothing filter so the next read equals the
// fake's current sample.
func (f *fixture) settle() {
	for i := 0; i < 5; i++ {
		f.sensor.Read()
	}
}

func TestMoveToPositionDirectionAndDelta(t *testing.T) {
	f := newFixture(t, true)
	f.settle() // current position 2000

	if err := f.ctrl.MoveToPosition(3000); err != nil {
		t.Fatal(err)
	}
	if f.motor.Dir != motor.DirDown {
		t.Fatalf("direction = %v, want down for larger target", f.motor.Dir)
	}
	if got := f.motor.LastStep(); got != 1000 {
		t.Fatalf("step count = %d, want 1000", got)
	}
	if f.ctrl.State() != MovingDown {
		t.Fatalf("state = %v, want moving-down", f.ctrl.State())
	}

	f.ctrl.Stop()
	if err := f.ctrl.MoveToPosition(500); err != nil {
		t.Fatal(err)
	}
	if f.motor.Dir != motor.DirUp {
		t.Fatalf("direction = %v, want up for smaller target", f.motor.Dir)
	}
	if got := f.motor.LastStep(); got != 1500 {
		t.Fatalf("step count = %d, want 1500", got)
	}
}

func TestMoveToPositionAlreadyThere(t *testing.T) {
	f := newFixture(t, true)
	f.settle()

	if err := f.ctrl.MoveToPosition(2000); err != nil {
		t.Fatal(err)
	}
	if len(f.motor.StepCalls) != 0 {
		t.Fatalf("motor stepped %v for no-op move", f.motor.StepCalls)
	}
	if f.ctrl.State() != Idle {
		t.Fatalf("state = %v, want idle", f.ctrl.State())
	}
}

func TestMoveRefusedDuringCalibration(t *testing.T) {
	f := newFixture(t, true)
	f.ctrl.Calibrate()

	if err := f.ctrl.MoveToPosition(1000); !errors.Is(err, ErrCalibrating) {
		t.Fatalf("error = %v, want ErrCalibrating", err)
	}
	if err := f.ctrl.MoveUp(); !errors.Is(err, ErrCalibrating) {
		t.Fatalf("error = %v, want ErrCalibrating", err)
	}
}

func TestGotoRefusedUncalibrated(t *testing.T) {
	f := newFixture(t, false)

	if err := f.ctrl.GotoTop(); !errors.Is(err, ErrNotCalibrated) {
		t.Fatalf("goto top error = %v, want ErrNotCalibrated", err)
	}
	if err := f.ctrl.GotoBottom(); !errors.Is(err, ErrNotCalibrated) {
		t.Fatalf("goto bottom error = %v, want ErrNotCalibrated", err)
	}
	if err := f.ctrl.SetPositionPercentage(50); !errors.Is(err, ErrNotCalibrated) {
		t.Fatalf("percentage error = %v, want ErrNotCalibrated", err)
	}
	if len(f.motor.StepCalls) != 0 {
		t.Fatalf("motor stepped %v while uncalibrated", f.motor.StepCalls)
	}
	if !f.ctrl.AutoCalibrate() {
		t.Fatal("uncalibrated boot did not flag auto calibration")
	}
}

func TestSetPositionPercentage(t *testing.T) {
	f := newFixture(t, true)
	f.settle()

	// Bounds [100, 3900], 50% -> 2000: already there.
	if err := f.ctrl.SetPositionPercentage(50); err != nil {
		t.Fatal(err)
	}
	if len(f.motor.StepCalls) != 0 {
		t.Fatalf("motor stepped %v for 50%% from midpoint", f.motor.StepCalls)
	}

	// 100% -> 3900, out-of-range input clamps to 100.
	if err := f.ctrl.SetPositionPercentage(250); err != nil {
		t.Fatal(err)
	}
	if f.motor.Dir != motor.DirDown || f.motor.LastStep() != 1900 {
		t.Fatalf("move = dir %v step %d, want down 1900", f.motor.Dir, f.motor.LastStep())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	f.settle()

	if err := f.ctrl.MoveUp(); err != nil {
		t.Fatal(err)
	}
	f.ctrl.Stop()
	f.ctrl.Stop()
	if f.motor.StopCalls != 1 {
		t.Fatalf("motor.Stop called %d times, want 1", f.motor.StopCalls)
	}
	if f.ctrl.State() != Idle {
		t.Fatalf("state = %v, want idle", f.ctrl.State())
	}
}

func TestLongPressAndRelease(t *testing.T) {
	f := newFixture(t, true)
	f.settle()

	f.ctrl.HandleButton(button.Event{Kind: button.LongPressStart, Button: debounce.ButtonUp})
	if f.ctrl.State() != MovingUp {
		t.Fatalf("state = %v, want moving-up", f.ctrl.State())
	}
	if got := f.motor.LastStep(); got != motor.ContinuousSteps {
		t.Fatalf("step count = %d, want continuous", got)
	}

	f.ctrl.HandleButton(button.Event{Kind: button.Release, Button: debounce.ButtonUp})
	if f.ctrl.State() != Idle {
		t.Fatalf("state after release = %v, want idle", f.ctrl.State())
	}
	if f.motor.IsMoving() {
		t.Fatal("motor still moving after release")
	}
}

func TestReleaseWithoutHoldIsIgnored(t *testing.T) {
	f := newFixture(t, true)
	f.settle()

	if err := f.ctrl.MoveToPosition(3000); err != nil {
		t.Fatal(err)
	}
	// A stray release (from a click) must not cancel a positional move.
	f.ctrl.HandleButton(button.Event{Kind: button.Release, Button: debounce.ButtonUp})
	if !f.motor.IsMoving() {
		t.Fatal("stray release stopped a positional move")
	}
}

func TestSingleClickGoesToExtremes(t *testing.T) {
	f := newFixture(t, true)
	f.settle()

	f.ctrl.HandleButton(button.Event{Kind: button.SingleClick, Button: debounce.ButtonUp})
	if f.motor.Dir != motor.DirUp || f.motor.LastStep() != 1900 {
		t.Fatalf("up click = dir %v step %d, want up 1900", f.motor.Dir, f.motor.LastStep())
	}
	f.ctrl.Stop()

	f.ctrl.HandleButton(button.Event{Kind: button.SingleClick, Button: debounce.ButtonDown})
	if f.motor.Dir != motor.DirDown || f.motor.LastStep() != 1900 {
		t.Fatalf("down click = dir %v step %d, want down 1900", f.motor.Dir, f.motor.LastStep())
	}
}

func TestDoubleClickMovesToMidpoint(t *testing.T) {
	f := newFixture(t, true)
	f.adc.SetSamples(3000)
	f.settle()

	f.ctrl.HandleButton(button.Event{Kind: button.DoubleClick, Button: debounce.ButtonUp})
	if f.motor.Dir != motor.DirUp || f.motor.LastStep() != 1000 {
		t.Fatalf("double click = dir %v step %d, want up 1000 (to midpoint 2000)",
			f.motor.Dir, f.motor.LastStep())
	}
}

func TestSimultaneousPressTogglesCalibration(t *testing.T) {
	f := newFixture(t, true)

	f.ctrl.HandleButton(button.Event{Kind: button.SimultaneousPress, Button: debounce.ButtonNone})
	if f.ctrl.State() != Calibrating {
		t.Fatalf("state = %v, want calibrating", f.ctrl.State())
	}

	f.ctrl.HandleButton(button.Event{Kind: button.SimultaneousPress, Button: debounce.ButtonNone})
	if f.ctrl.State() != Idle {
		t.Fatalf("state after abort = %v, want idle", f.ctrl.State())
	}
	// Aborting keeps the prior calibration.
	if !f.sensor.IsCalibrated() {
		t.Fatal("abort cleared existing calibration")
	}
}

func TestCalibrationWorkflowByClicks(t *testing.T) {
	f := newFixture(t, false)
	f.adc.SetSamples(150)

	f.ctrl.HandleButton(button.Event{Kind: button.SimultaneousPress, Button: debounce.ButtonNone})
	if f.sensor.Step() != sensor.StepUpper {
		t.Fatalf("step = %v, want upper", f.sensor.Step())
	}

	f.ctrl.HandleButton(button.Event{Kind: button.SingleClick, Button: debounce.ButtonUp})
	if f.sensor.Step() != sensor.StepLower {
		t.Fatalf("step = %v, want lower", f.sensor.Step())
	}

	f.adc.SetSamples(3800)
	f.settle()
	f.ctrl.HandleButton(button.Event{Kind: button.SingleClick, Button: debounce.ButtonDown})

	if f.ctrl.State() != Idle {
		t.Fatalf("state after completion = %v, want idle", f.ctrl.State())
	}
	if !f.sensor.IsCalibrated() {
		t.Fatal("workflow did not calibrate the sensor")
	}
	if f.sensor.MinPosition() != 150 || f.sensor.MaxPosition() != 3800 {
		t.Fatalf("bounds = [%d, %d], want [150, 3800]",
			f.sensor.MinPosition(), f.sensor.MaxPosition())
	}
}

func TestCalibrationStepAPI(t *testing.T) {
	f := newFixture(t, false)
	f.adc.SetSamples(150)

	if err := f.ctrl.CalibrationStep(); !errors.Is(err, ErrNotCalibrating) {
		t.Fatalf("step outside workflow error = %v, want ErrNotCalibrating", err)
	}

	f.ctrl.Calibrate()
	if err := f.ctrl.CalibrationStep(); err != nil {
		t.Fatal(err)
	}
	if f.sensor.Step() != sensor.StepLower {
		t.Fatalf("step = %v, want lower", f.sensor.Step())
	}

	if err := f.ctrl.CancelCalibration(); err != nil {
		t.Fatal(err)
	}
	if f.ctrl.State() != Idle {
		t.Fatalf("state after cancel = %v, want idle", f.ctrl.State())
	}
	if err := f.ctrl.CancelCalibration(); !errors.Is(err, ErrNotCalibrating) {
		t.Fatalf("cancel outside workflow error = %v, want ErrNotCalibrating", err)
	}
}

func TestStateEventsPublished(t *testing.T) {
	hub := events.NewHub()
	f := newFixture(t, true, WithEventHub(hub))
	f.settle()

	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	if err := f.ctrl.MoveUp(); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		if ev.Name != events.ControllerState {
			t.Fatalf("event name = %q, want %q", ev.Name, events.ControllerState)
		}
		st, err := events.DecodeAs[events.StateEvent](ev)
		if err != nil {
			t.Fatal(err)
		}
		if st.From != "idle" || st.To != "moving-up" {
			t.Fatalf("transition = %s -> %s, want idle -> moving-up", st.From, st.To)
		}
	case <-time.After(time.Second):
		t.Fatal("no state event published")
	}
}
