package debounce

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/hw/gpio"
)

// PollerConfig configures the polling recognizer. Buttons are wired
// active-low (pressed shorts the pin to ground against a pull-up).
type PollerConfig struct {
	UpPin   int
	DownPin int

	// PollInterval is how often pin levels are sampled.
	PollInterval time.Duration
	// LongPress is the hold duration after which LongPressStart fires.
	LongPress time.Duration
	// DoubleClickWindow is the max gap between two presses counted as
	// a double click.
	DoubleClickWindow time.Duration
}

func (c *PollerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Millisecond
	}
	if c.LongPress <= 0 {
		c.LongPress = time.Second
	}
	if c.DoubleClickWindow <= 0 {
		c.DoubleClickWindow = 300 * time.Millisecond
	}
}

type pressPhase int

const (
	phaseIdle pressPhase = iota
	phasePressed
	phaseHeld
	phaseMaybeDouble
	phaseSecondPress
)

type buttonState struct {
	pin        int
	phase      pressPhase
	pressedAt  time.Time
	releasedAt time.Time
	rawPressed bool
}

// Poller is a polling press recognizer over a gpio.Driver. It runs one
// goroutine sampling both buttons and classifying presses into single
// clicks, double clicks, long presses and releases.
type Poller struct {
	gpio gpio.Driver
	cfg  PollerConfig

	mu        sync.Mutex
	callbacks map[Button]map[EventKind][]Callback
	buttons   [2]buttonState
	stopCh    chan struct{}
	stopOnce  sync.Once
}

var _ Driver = (*Poller)(nil)

func NewPoller(g gpio.Driver, cfg PollerConfig) (*Poller, error) {
	cfg.applyDefaults()

	for _, pin := range []int{cfg.UpPin, cfg.DownPin} {
		if err := g.SetupPin(pin, gpio.Input); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to set up button pin %d", pin)
		}
	}

	p := &Poller{
		gpio:      g,
		cfg:       cfg,
		callbacks: make(map[Button]map[EventKind][]Callback),
		stopCh:    make(chan struct{}),
	}
	p.buttons[ButtonUp] = buttonState{pin: cfg.UpPin}
	p.buttons[ButtonDown] = buttonState{pin: cfg.DownPin}
	return p, nil
}

func (p *Poller) RegisterCallback(btn Button, kind EventKind, cb Callback) error {
	if btn != ButtonUp && btn != ButtonDown {
		return pkgerrors.Errorf("cannot register callback for button %d", btn)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.callbacks[btn] == nil {
		p.callbacks[btn] = make(map[EventKind][]Callback)
	}
	p.callbacks[btn][kind] = append(p.callbacks[btn][kind], cb)
	return nil
}

func (p *Poller) IsPressed(btn Button) bool {
	if btn != ButtonUp && btn != ButtonDown {
		return false
	}
	level, err := p.gpio.ReadPin(p.buttons[btn].pin)
	if err != nil {
		logrus.WithError(err).Warn("failed to read button pin")
		return false
	}
	return level == gpio.Low
}

// Start launches the polling goroutine.
func (p *Poller) Start() {
	go p.loop()
}

func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			for btn := ButtonUp; btn <= ButtonDown; btn++ {
				p.advance(btn, p.IsPressed(btn), now)
			}
		}
	}
}

// advance runs one button's press state machine for a single sample.
func (p *Poller) advance(btn Button, pressed bool, now time.Time) {
	p.mu.Lock()
	st := &p.buttons[btn]
	st.rawPressed = pressed

	var fire []EventKind

	switch st.phase {
	case phaseIdle:
		if pressed {
			st.phase = phasePressed
			st.pressedAt = now
		}
	case phasePressed:
		if !pressed {
			st.phase = phaseMaybeDouble
			st.releasedAt = now
			fire = append(fire, Release)
		} else if now.Sub(st.pressedAt) >= p.cfg.LongPress {
			st.phase = phaseHeld
			fire = append(fire, LongPressStart)
		}
	case phaseHeld:
		if !pressed {
			st.phase = phaseIdle
			fire = append(fire, Release)
		}
	case phaseMaybeDouble:
		if pressed {
			st.phase = phaseSecondPress
			st.pressedAt = now
		} else if now.Sub(st.releasedAt) >= p.cfg.DoubleClickWindow {
			st.phase = phaseIdle
			fire = append(fire, SingleClick)
		}
	case phaseSecondPress:
		if !pressed {
			st.phase = phaseIdle
			fire = append(fire, DoubleClick, Release)
		} else if now.Sub(st.pressedAt) >= p.cfg.LongPress {
			// A press-release-hold sequence counts as a long press.
			st.phase = phaseHeld
			fire = append(fire, LongPressStart)
		}
	}

	p.mu.Unlock()

	for _, kind := range fire {
		for _, cb := range p.callbacksFor(btn, kind) {
			cb(btn, kind)
		}
	}
}

func (p *Poller) callbacksFor(btn Button, kind EventKind) []Callback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callbacks[btn][kind]
}
