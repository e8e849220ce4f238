package controller

import (
	"testing"
	"time"

	"github.com/blindd/blindd/pkg/button"
	"github.com/blindd/blindd/pkg/events"
	"github.com/blindd/blindd/pkg/hw/debounce"
)

func waitFor(t *testing.T, deadline time.Duration, cond func() bool) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBoundaryStopsHeldDownwardMotion(t *testing.T) {
	hub := events.NewHub()
	f := newFixture(t, true,
		WithEventHub(hub),
		WithBoundaryInterval(2*time.Millisecond))
	f.adc.SetSamples(3900)
	f.settle()

	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	f.ctrl.HandleButton(button.Event{Kind: button.LongPressStart, Button: debounce.ButtonDown})

	waitFor(t, time.Second, func() bool { return !f.motor.IsMoving() })
	if f.ctrl.State() != Idle {
		t.Fatalf("state = %v, want idle after boundary stop", f.ctrl.State())
	}

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Name != events.BoundaryStop {
				continue
			}
			bs, err := events.DecodeAs[events.BoundaryStopEvent](ev)
			if err != nil {
				t.Fatal(err)
			}
			if bs.Bound != "lower" {
				t.Fatalf("bound = %q, want lower", bs.Bound)
			}
			return
		case <-deadline:
			t.Fatal("no boundary stop event")
		}
	}
}

func TestBoundaryStopsHeldUpwardMotion(t *testing.T) {
	f := newFixture(t, true, WithBoundaryInterval(2*time.Millisecond))
	f.adc.SetSamples(100)
	f.settle()

	f.ctrl.HandleButton(button.Event{Kind: button.LongPressStart, Button: debounce.ButtonUp})

	waitFor(t, time.Second, func() bool { return !f.motor.IsMoving() })
	if f.ctrl.State() != Idle {
		t.Fatalf("state = %v, want idle after boundary stop", f.ctrl.State())
	}
}

func TestBoundaryStopsAPIDownwardMotion(t *testing.T) {
	hub := events.NewHub()
	f := newFixture(t, true,
		WithEventHub(hub),
		WithBoundaryInterval(2*time.Millisecond))
	f.adc.SetSamples(3900)
	f.settle()

	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	if err := f.ctrl.MoveDown(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool { return !f.motor.IsMoving() })
	if f.ctrl.State() != Idle {
		t.Fatalf("state = %v, want idle after boundary stop", f.ctrl.State())
	}

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Name != events.BoundaryStop {
				continue
			}
			bs, err := events.DecodeAs[events.BoundaryStopEvent](ev)
			if err != nil {
				t.Fatal(err)
			}
			if bs.Bound != "lower" {
				t.Fatalf("bound = %q, want lower", bs.Bound)
			}
			return
		case <-deadline:
			t.Fatal("no boundary stop event")
		}
	}
}

func TestBoundaryStopsAPIUpwardMotion(t *testing.T) {
	f := newFixture(t, true, WithBoundaryInterval(2*time.Millisecond))
	f.adc.SetSamples(100)
	f.settle()

	if err := f.ctrl.MoveUp(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool { return !f.motor.IsMoving() })
	if f.ctrl.State() != Idle {
		t.Fatalf("state = %v, want idle after boundary stop", f.ctrl.State())
	}
}

func TestBoundaryLetsMidTravelMotionRun(t *testing.T) {
	f := newFixture(t, true, WithBoundaryInterval(2*time.Millisecond))
	f.settle() // position 2000, well inside [100, 3900]

	f.ctrl.HandleButton(button.Event{Kind: button.LongPressStart, Button: debounce.ButtonDown})

	time.Sleep(30 * time.Millisecond)
	if !f.motor.IsMoving() {
		t.Fatal("mid-travel motion stopped by boundary watchdog")
	}
	f.ctrl.HandleButton(button.Event{Kind: button.Release, Button: debounce.ButtonDown})
	waitFor(t, time.Second, func() bool { return !f.motor.IsMoving() })
}

func TestBoundaryWatchdogExitsOnRelease(t *testing.T) {
	f := newFixture(t, true, WithBoundaryInterval(2*time.Millisecond))
	f.settle()

	f.ctrl.HandleButton(button.Event{Kind: button.LongPressStart, Button: debounce.ButtonDown})
	f.ctrl.HandleButton(button.Event{Kind: button.Release, Button: debounce.ButtonDown})

	// Once the covering sits past the bound, an exited watchdog must
	// not fire a late stop on a fresh positional move.
	time.Sleep(20 * time.Millisecond)

	f.adc.SetSamples(3900)
	f.settle()
	if err := f.ctrl.MoveToPosition(200); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if !f.motor.IsMoving() {
		t.Fatal("stale watchdog stopped an unrelated move")
	}
}

func TestBoundarySkippedUncalibrated(t *testing.T) {
	f := newFixture(t, false, WithBoundaryInterval(2*time.Millisecond))
	f.adc.SetSamples(3900)
	f.settle()

	f.ctrl.HandleButton(button.Event{Kind: button.LongPressStart, Button: debounce.ButtonDown})

	time.Sleep(30 * time.Millisecond)
	if !f.motor.IsMoving() {
		t.Fatal("boundary enforcement ran without calibrated bounds")
	}
	f.ctrl.Stop()
}
