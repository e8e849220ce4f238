package motor

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/hw/gpio"
)

const stepperPins = 4

// Half-step excitation sequence for a 28BYJ-48 style 4-coil stepper.
var coilSeq = [8]int{
	0b0001,
	0b0011,
	0b0010,
	0b0110,
	0b0100,
	0b1100,
	0b1000,
	0b1001,
}

// StepperConfig holds the hardware configuration for the stepper.
type StepperConfig struct {
	// Pins are the four coil GPIO pins (BCM numbering), in driver order.
	Pins [stepperPins]int
	// DefaultSpeed in steps per second, used until SetSpeed is called.
	DefaultSpeed uint32
}

// Stepper drives a 4-coil stepper through a gpio.Driver. Step commands
// run on a background goroutine so the caller never blocks on motion.
type Stepper struct {
	gpio gpio.Driver
	cfg  StepperConfig

	mu     sync.Mutex
	dir    Direction
	delay  time.Duration
	pos    int // index into coilSeq
	moving bool
	stopCh chan struct{}
	done   sync.WaitGroup
}

func NewStepper(g gpio.Driver, cfg StepperConfig) (*Stepper, error) {
	for _, p := range cfg.Pins {
		if err := g.SetupPin(p, gpio.Output); err != nil {
			return nil, err
		}
		if err := g.WritePin(p, gpio.Low); err != nil {
			return nil, err
		}
	}

	speed := cfg.DefaultSpeed
	if speed == 0 {
		speed = 500
	}

	return &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: speedToDelay(speed),
	}, nil
}

func speedToDelay(stepsPerSecond uint32) time.Duration {
	return time.Second / time.Duration(stepsPerSecond)
}

func (s *Stepper) SetDirection(d Direction) {
	s.mu.Lock()
	s.dir = d
	s.mu.Unlock()
}

func (s *Stepper) SetSpeed(stepsPerSecond uint32) {
	if stepsPerSecond == 0 {
		logrus.Warn("ignoring zero stepper speed")
		return
	}
	s.mu.Lock()
	s.delay = speedToDelay(stepsPerSecond)
	s.mu.Unlock()
}

func (s *Stepper) IsMoving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moving
}

// Step starts a new motion. Any motion still in progress is stopped
// first, so the latest command always wins.
func (s *Stepper) Step(count uint32) {
	if count == 0 {
		return
	}
	s.Stop()

	s.mu.Lock()
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.moving = true
	dir := s.dir
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"steps":     count,
		"direction": dir,
	}).Debug("stepper motion started")

	s.done.Add(1)
	go s.run(count, dir, stopCh)
}

func (s *Stepper) run(count uint32, dir Direction, stopCh chan struct{}) {
	defer s.done.Done()
	defer func() {
		s.mu.Lock()
		s.moving = false
		s.mu.Unlock()
		s.deenergize()
	}()

	delta := 1
	if dir == DirUp {
		delta = -1
	}

	for i := uint32(0); i < count; i++ {
		s.mu.Lock()
		s.pos = (s.pos + delta + len(coilSeq)) % len(coilSeq)
		s.writeCoils()
		d := s.delay
		s.mu.Unlock()

		select {
		case <-stopCh:
			return
		case <-time.After(d):
		}
	}
}

// Stop halts any in-progress motion and waits for the stepping
// goroutine to exit, leaving the coils de-energized.
func (s *Stepper) Stop() {
	s.mu.Lock()
	if s.stopCh != nil {
		select {
		case <-s.stopCh:
		default:
			close(s.stopCh)
		}
		s.stopCh = nil
	}
	s.mu.Unlock()

	s.done.Wait()
}

// writeCoils applies the current coil sequence entry. Caller holds mu.
func (s *Stepper) writeCoils() {
	v := coilSeq[s.pos]
	for i := 0; i < stepperPins; i++ {
		level := gpio.Low
		if v&1 == 1 {
			level = gpio.High
		}
		if err := s.gpio.WritePin(s.cfg.Pins[i], level); err != nil {
			logrus.WithError(err).Error("failed to write stepper coil pin")
		}
		v >>= 1
	}
}

func (s *Stepper) deenergize() {
	for _, p := range s.cfg.Pins {
		if err := s.gpio.WritePin(p, gpio.Low); err != nil {
			logrus.WithError(err).Error("failed to de-energize stepper coil")
		}
	}
}
