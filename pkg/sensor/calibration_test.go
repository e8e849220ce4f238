package sensor

import (
	"errors"
	"testing"

	"github.com/blindd/blindd/pkg/hw/adc"
	"github.com/blindd/blindd/pkg/store"
)

func TestStepSequenceWithoutZebra(t *testing.T) {
	r := New(adc.NewFake(2000), store.NewMemory(), false)

	r.StartStepCalibration()
	if got := r.Step(); got != StepUpper {
		t.Fatalf("initial step = %v, want upper", got)
	}
	if got := r.NextStep(); got != StepLower {
		t.Fatalf("second step = %v, want lower", got)
	}
	if got := r.NextStep(); got != StepComplete {
		t.Fatalf("third step = %v, want complete (zebra disabled)", got)
	}
	// Complete is terminal.
	if got := r.NextStep(); got != StepComplete {
		t.Fatalf("step after complete = %v, want complete", got)
	}
}

func TestStepSequenceWithZebra(t *testing.T) {
	r := New(adc.NewFake(2000), store.NewMemory(), true)

	r.StartStepCalibration()
	want := []Step{StepLower, StepZebraOffset, StepComplete}
	for _, w := range want {
		if got := r.NextStep(); got != w {
			t.Fatalf("step = %v, want %v", got, w)
		}
	}
}

func TestStepCalibrationEndToEnd(t *testing.T) {
	st := store.NewMemory()
	r := New(adc.NewFake(2000), st, false)

	r.StartStepCalibration()
	if err := r.SaveStep(100); err != nil {
		t.Fatalf("save upper: %v", err)
	}
	r.NextStep()
	if err := r.SaveStep(3900); err != nil {
		t.Fatalf("save lower: %v", err)
	}
	r.NextStep()

	if !r.IsCalibrated() {
		t.Fatal("reader not calibrated after workflow")
	}
	if r.MinPosition() != 100 || r.MaxPosition() != 3900 {
		t.Fatalf("bounds = [%d, %d], want [100, 3900]",
			r.MinPosition(), r.MaxPosition())
	}

	// Completion flushes to durable storage.
	if v, ok := st.Committed("upper_position"); !ok || v != 100 {
		t.Fatalf("committed upper = %d (%v), want 100", v, ok)
	}
	if v, ok := st.Committed("lower_position"); !ok || v != 3900 {
		t.Fatalf("committed lower = %d (%v), want 3900", v, ok)
	}
}

func TestSaveStepRejectsInvertedCapture(t *testing.T) {
	r := New(adc.NewFake(2000), store.NewMemory(), false)

	r.StartStepCalibration()
	if err := r.SaveStep(3000); err != nil {
		t.Fatalf("save upper: %v", err)
	}
	r.NextStep()
	if err := r.SaveStep(1000); !errors.Is(err, ErrInvalidCalibration) {
		t.Fatalf("inverted capture error = %v, want ErrInvalidCalibration", err)
	}
	if r.IsCalibrated() {
		t.Fatal("reader calibrated from inverted capture")
	}
}

func TestSaveStepZebraOffsetIsDistanceFromLower(t *testing.T) {
	r := New(adc.NewFake(2000), store.NewMemory(), true)

	r.StartStepCalibration()
	if err := r.SaveStep(100); err != nil {
		t.Fatal(err)
	}
	r.NextStep()
	if err := r.SaveStep(3900); err != nil {
		t.Fatal(err)
	}
	r.NextStep()
	// Covering moved from the lower bound 3900 up to 3700.
	if err := r.SaveStep(3700); err != nil {
		t.Fatal(err)
	}
	r.NextStep()

	if got := r.ZebraOffset(); got != 200 {
		t.Fatalf("zebra offset = %d, want 200", got)
	}
}

func TestStartStepCalibrationLoadsPersistedValues(t *testing.T) {
	st := store.NewMemory()
	st.SetU32("upper_position", 300)
	st.SetU32("lower_position", 3500)
	r := New(adc.NewFake(2000), st, false)

	r.StartStepCalibration()
	// Advancing without capturing re-commits the loaded values.
	r.NextStep()
	r.NextStep()

	if v, _ := st.Committed("upper_position"); v != 300 {
		t.Fatalf("committed upper = %d, want loaded 300", v)
	}
	if v, _ := st.Committed("lower_position"); v != 3500 {
		t.Fatalf("committed lower = %d, want loaded 3500", v)
	}
}

func TestPersistSurvivesCommitError(t *testing.T) {
	st := store.NewMemory()
	st.CommitErr = errors.New("flash write failed")
	r := New(adc.NewFake(2000), st, false)

	r.StartStepCalibration()
	if err := r.SaveStep(100); err != nil {
		t.Fatal(err)
	}
	r.NextStep()
	if err := r.SaveStep(3900); err != nil {
		t.Fatal(err)
	}
	r.NextStep()

	// Persistence failed but the live calibration still applies.
	if !r.IsCalibrated() {
		t.Fatal("commit failure lost in-memory calibration")
	}
	if _, ok := st.Committed("upper_position"); ok {
		t.Fatal("value committed despite commit error")
	}
}

func TestStepPrompts(t *testing.T) {
	steps := []Step{StepUpper, StepLower, StepZebraOffset, StepComplete}
	seen := map[string]bool{}
	for _, s := range steps {
		p := StepPrompt(s)
		if p == "" {
			t.Fatalf("empty prompt for step %v", s)
		}
		if seen[p] {
			t.Fatalf("duplicate prompt %q", p)
		}
		seen[p] = true
	}
}
