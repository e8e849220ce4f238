package daemon

import (
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/blindd/blindd/pkg/config"
)

func TestSetSchedulesRejectsInvalidCron(t *testing.T) {
	s := NewScheduler(func(float64) error { return nil }, nil, nil, nil)

	if err := s.SetSchedules([]config.Schedule{{Cron: "0 8 * * *", Percent: 50}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSchedules([]config.Schedule{{Cron: "bogus", Percent: 50}}); err == nil {
		t.Fatal("invalid cron accepted")
	}

	// The rejected set must not clobber the active entries.
	if _, _, ok := s.NextRun(); !ok {
		t.Fatal("valid schedule lost after rejected update")
	}
}

func TestNextRunPicksSoonest(t *testing.T) {
	s := NewScheduler(func(float64) error { return nil }, nil, nil, nil)

	if _, _, ok := s.NextRun(); ok {
		t.Fatal("empty scheduler reported a next run")
	}

	if err := s.SetSchedules([]config.Schedule{
		{Cron: "@monthly", Percent: 0},
		{Cron: "* * * * *", Percent: 100},
	}); err != nil {
		t.Fatal(err)
	}

	runAt, percent, ok := s.NextRun()
	if !ok {
		t.Fatal("no next run")
	}
	if percent != 100 {
		t.Fatalf("next percent = %v, want 100 (per-minute entry)", percent)
	}
	if until := time.Until(runAt); until <= 0 || until > time.Minute {
		t.Fatalf("next run in %v, want within a minute", until)
	}
}

func TestScheduledMoveRuns(t *testing.T) {
	var mu sync.Mutex
	var moved []float64

	s := NewScheduler(func(p float64) error {
		mu.Lock()
		moved = append(moved, p)
		mu.Unlock()
		return nil
	}, nil, nil, nil)

	if err := s.SetSchedules([]config.Schedule{{Cron: "* * * * *", Percent: 75}}); err != nil {
		t.Fatal(err)
	}
	// Pull the next run into the immediate future.
	s.mu.Lock()
	s.entries[0].nextRun = time.Now().Add(20 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(moved)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(moved) == 0 || moved[0] != 75 {
		t.Fatalf("moves = %v, want 75", moved)
	}

	// The entry advanced to its next occurrence.
	runAt, _, ok := s.NextRun()
	if !ok || time.Until(runAt) <= 0 {
		t.Fatalf("next run = %v (%v) after firing", runAt, ok)
	}
}

func TestSkipAdvancesNextRun(t *testing.T) {
	s := NewScheduler(func(float64) error { return nil }, nil, nil, nil)

	if err := s.Skip(); !pkgerrors.Is(err, ErrNoScheduledMove) {
		t.Fatalf("Skip on empty scheduler = %v, want ErrNoScheduledMove", err)
	}

	if err := s.SetSchedules([]config.Schedule{{Cron: "* * * * *", Percent: 20}}); err != nil {
		t.Fatal(err)
	}

	before, _, _ := s.NextRun()
	if err := s.Skip(); err != nil {
		t.Fatal(err)
	}
	after, _, ok := s.NextRun()
	if !ok {
		t.Fatal("no next run after skip")
	}
	if after.Sub(before) != time.Minute {
		t.Fatalf("skip advanced next run by %v, want one minute", after.Sub(before))
	}
}

func TestPostponeDelaysNextRun(t *testing.T) {
	s := NewScheduler(func(float64) error { return nil }, nil, nil, nil)

	if err := s.Postpone(time.Second); !pkgerrors.Is(err, ErrNoScheduledMove) {
		t.Fatalf("Postpone on empty scheduler = %v, want ErrNoScheduledMove", err)
	}

	if err := s.SetSchedules([]config.Schedule{{Cron: "* * * * *", Percent: 20}}); err != nil {
		t.Fatal(err)
	}
	before, _, _ := s.NextRun()

	if err := s.Postpone(0); err == nil {
		t.Fatal("zero postpone accepted")
	}
	// A full minute lands on the following per-minute occurrence.
	if err := s.Postpone(time.Minute); err == nil {
		t.Fatal("postpone past the following run accepted")
	}

	if err := s.Postpone(10 * time.Second); err != nil {
		t.Fatal(err)
	}
	after, _, ok := s.NextRun()
	if !ok {
		t.Fatal("no next run after postpone")
	}
	if after.Sub(before) != 10*time.Second {
		t.Fatalf("postpone delayed next run by %v, want 10s", after.Sub(before))
	}
}

func TestSkipPreventsImminentMove(t *testing.T) {
	var mu sync.Mutex
	var moved []float64

	s := NewScheduler(func(p float64) error {
		mu.Lock()
		moved = append(moved, p)
		mu.Unlock()
		return nil
	}, nil, nil, nil)

	if err := s.SetSchedules([]config.Schedule{{Cron: "@daily", Percent: 30}}); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.entries[0].nextRun = time.Now().Add(50 * time.Millisecond)
	s.mu.Unlock()

	if err := s.Skip(); err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop()

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(moved) != 0 {
		t.Fatalf("moves = %v after skipping the pending run", moved)
	}
}

func TestPreCheckFailurePostponesMove(t *testing.T) {
	var mu sync.Mutex
	var moved bool
	var errs []error

	blocked := true
	s := NewScheduler(
		func(float64) error {
			mu.Lock()
			moved = true
			mu.Unlock()
			return nil
		},
		func() error {
			mu.Lock()
			defer mu.Unlock()
			if blocked {
				return pkgerrors.New("busy")
			}
			return nil
		},
		nil,
		func(data any) {
			mu.Lock()
			errs = append(errs, data.(error))
			mu.Unlock()
		})

	if err := s.SetSchedules([]config.Schedule{{Cron: "* * * * *", Percent: 10}}); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.entries[0].nextRun = time.Now().Add(10 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	// Give the precheck time to fail at least once.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	if moved {
		mu.Unlock()
		t.Fatal("move ran despite failing precheck")
	}
	if len(errs) == 0 {
		mu.Unlock()
		t.Fatal("precheck failure not reported")
	}
	mu.Unlock()
}

func TestStopTerminatesScheduler(t *testing.T) {
	s := NewScheduler(func(float64) error { return nil }, nil, nil, nil)
	s.Start()
	s.Stop()
	s.Stop() // idempotent

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("scheduler still running after stop")
}
