package daemon

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/config"
)

const (
	// leadDuration is how long before a scheduled move the upcoming
	// notification fires.
	leadDuration     = time.Minute * 5
	preCheckMaxTimes = 30
	preCheckInterval = time.Second * 10
)

type NotifyFunc func(data any)

// TaskFunc represents a runnable check.
type TaskFunc func() error

// MoveFunc performs the scheduled move to a target percentage.
type MoveFunc func(percent float64) error

// Upcoming is the payload passed to OnUpcoming.
type Upcoming struct {
	RunAt   time.Time
	Percent float64
}

// ErrNoScheduledMove is returned by Skip and Postpone when no entry
// has a pending run.
var ErrNoScheduledMove = pkgerrors.New("no scheduled move")

// Scheduler runs the configured cron schedules, moving the covering to
// each entry's target percentage at its time. A PreCheck that fails
// (e.g. a calibration in progress) postpones the move and retries.
type Scheduler struct {
	OnUpcoming NotifyFunc
	OnError    NotifyFunc
	Move       MoveFunc
	PreCheck   TaskFunc

	parser cron.Parser

	mu      sync.Mutex
	entries []scheduleEntry
	running bool

	recalcCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

type scheduleEntry struct {
	expr     string
	percent  float64
	schedule cron.Schedule
	nextRun  time.Time
}

func NewScheduler(move MoveFunc, preCheck TaskFunc, onUpcoming, onError NotifyFunc) *Scheduler {
	if move == nil {
		panic("move function cannot be nil")
	}

	return &Scheduler{
		OnUpcoming: onUpcoming,
		OnError:    onError,
		Move:       move,
		PreCheck:   preCheck,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		recalcCh:   make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
}

// SetSchedules replaces all schedule entries. An invalid cron
// expression rejects the whole set, leaving the active entries
// untouched.
func (s *Scheduler) SetSchedules(schedules []config.Schedule) error {
	now := time.Now()
	entries := make([]scheduleEntry, 0, len(schedules))
	for _, sc := range schedules {
		sh, err := s.parser.Parse(sc.Cron)
		if err != nil {
			return pkgerrors.Wrapf(err, "invalid cron expression %q", sc.Cron)
		}
		entries = append(entries, scheduleEntry{
			expr:     sc.Cron,
			percent:  sc.Percent,
			schedule: sh,
			nextRun:  sh.Next(now),
		})
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.signalRecalc()
	return nil
}

func (s *Scheduler) signalRecalc() {
	select {
	case s.recalcCh <- struct{}{}:
	default:
	}
}

// Skip drops the next scheduled move, advancing the soonest entry to
// its following occurrence.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	idx := s.soonestLocked()
	if idx < 0 {
		s.mu.Unlock()
		return ErrNoScheduledMove
	}
	e := &s.entries[idx]
	skipped := e.nextRun
	e.nextRun = e.schedule.Next(e.nextRun)
	logrus.WithFields(logrus.Fields{
		"skipped": skipped.Format(time.DateTime),
		"nextRun": e.nextRun.Format(time.DateTime),
	}).Info("skipping next scheduled move")
	s.mu.Unlock()

	s.signalRecalc()
	return nil
}

// Postpone delays the next scheduled move by d. The delay cannot push
// the move past the entry's following occurrence.
func (s *Scheduler) Postpone(d time.Duration) error {
	if d <= 0 {
		return pkgerrors.New("postpone duration must be positive")
	}

	s.mu.Lock()
	idx := s.soonestLocked()
	if idx < 0 {
		s.mu.Unlock()
		return ErrNoScheduledMove
	}
	e := &s.entries[idx]
	pp := e.nextRun.Add(d)
	if !pp.Before(e.schedule.Next(e.nextRun)) {
		s.mu.Unlock()
		return pkgerrors.Errorf("postpone duration %s overlaps the following run", d)
	}
	logrus.WithFields(logrus.Fields{
		"from": e.nextRun.Format(time.DateTime),
		"to":   pp.Format(time.DateTime),
	}).Info("postponing next scheduled move")
	e.nextRun = pp
	s.mu.Unlock()

	s.signalRecalc()
	return nil
}

// NextRun returns the soonest scheduled move, if any.
func (s *Scheduler) NextRun() (runAt time.Time, percent float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.soonestLocked()
	if idx < 0 {
		return time.Time{}, 0, false
	}
	return s.entries[idx].nextRun, s.entries[idx].percent, true
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.runScheduled()
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// soonestLocked returns the index of the entry with the earliest
// nextRun, or -1 when no entries exist. Caller holds mu.
func (s *Scheduler) soonestLocked() int {
	idx := -1
	for i := range s.entries {
		if s.entries[i].nextRun.IsZero() {
			continue
		}
		if idx < 0 || s.entries[i].nextRun.Before(s.entries[idx].nextRun) {
			idx = i
		}
	}
	return idx
}

func (s *Scheduler) snapshot() (runAt time.Time, percent float64, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx = s.soonestLocked()
	if idx < 0 {
		return time.Time{}, 0, -1
	}
	return s.entries[idx].nextRun, s.entries[idx].percent, idx
}

// stillScheduled reports whether entry idx is still due at runAt.
// Skip, Postpone, and SetSchedules all move an armed timer's target.
func (s *Scheduler) stillScheduled(idx int, runAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.entries) {
		return false
	}
	return s.entries[idx].nextRun.Equal(runAt)
}

func (s *Scheduler) advance(idx int, ranAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.entries) {
		return
	}
	e := &s.entries[idx]
	if !e.nextRun.Equal(ranAt) {
		// Entries changed under us; the recalc signal handles it.
		return
	}
	e.nextRun = e.schedule.Next(e.nextRun)
}

func (s *Scheduler) runScheduled() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("scheduler stopped")
	}()

	logrus.Debug("scheduler started")

	for {
		runAt, percent, idx := s.snapshot()

		var timer *time.Timer
		if idx < 0 {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(runAt) - leadDuration
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		leading := true
		attempts := 0
		var precheckErr error

	inner:
		for {
			select {
			case <-timer.C:
				if idx < 0 {
					break inner
				}

				if !s.stillScheduled(idx, runAt) {
					timer.Stop()
					break inner
				}

				if leading && time.Until(runAt) > time.Second {
					logrus.Debugf("upcoming scheduled move to %.0f%% at %s", percent, runAt.Format(time.DateTime))
					leading = false
					timer.Reset(time.Until(runAt))
					s.sendNotify(Upcoming{RunAt: runAt, Percent: percent})
					continue
				}

				if s.PreCheck != nil {
					if err := s.PreCheck(); err != nil {
						if precheckErr == nil || err.Error() != precheckErr.Error() {
							precheckErr = err
							s.sendError(pkgerrors.Wrap(err, "precheck failed"))
						}

						attempts++
						if attempts <= preCheckMaxTimes {
							logrus.Debugf("precheck failed (%d/%d): %v; retrying in %s", attempts, preCheckMaxTimes, err, preCheckInterval)
							timer.Reset(preCheckInterval)
							continue
						}

						timer.Stop()
						s.advance(idx, runAt)
						break inner
					}
				}

				logrus.Infof("running scheduled move to %.0f%%", percent)
				timer.Stop()

				go func(p float64) {
					if err := s.Move(p); err != nil {
						s.sendError(pkgerrors.Wrap(err, "scheduled move failed"))
					}
				}(percent)

				s.advance(idx, runAt)
				break inner
			case <-s.stopCh:
				timer.Stop()
				return
			case <-s.recalcCh:
				timer.Stop()
				break inner
			}
		}
	}
}

func (s *Scheduler) sendNotify(up Upcoming) {
	if s.OnUpcoming == nil {
		return
	}
	go s.OnUpcoming(up)
}

func (s *Scheduler) sendError(err error) {
	if s.OnError == nil {
		return
	}
	go s.OnError(err)
}
