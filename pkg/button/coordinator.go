// Package button normalizes the two per-button debounce sources plus a
// derived simultaneous-press condition into one ordered event stream.
package button

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/hw/debounce"
)

// Kind is the semantic button event set delivered to the consumer. It
// extends the debounce driver's kinds with the synthesized
// simultaneous press.
type Kind int

const (
	SingleClick Kind = iota
	DoubleClick
	LongPressStart
	Release
	SimultaneousPress
)

func (k Kind) String() string {
	switch k {
	case SingleClick:
		return "single-click"
	case DoubleClick:
		return "double-click"
	case LongPressStart:
		return "long-press-start"
	case Release:
		return "release"
	case SimultaneousPress:
		return "simultaneous-press"
	default:
		return "unknown"
	}
}

func kindOf(k debounce.EventKind) Kind {
	switch k {
	case debounce.SingleClick:
		return SingleClick
	case debounce.DoubleClick:
		return DoubleClick
	case debounce.LongPressStart:
		return LongPressStart
	default:
		return Release
	}
}

// Event is one item of the normalized stream. Button is
// debounce.ButtonNone for SimultaneousPress, which is not attributable
// to a single button.
type Event struct {
	Kind   Kind
	Button debounce.Button
}

// Callback receives dequeued events in strict FIFO order, one at a
// time, on the coordinator's consumer goroutine.
type Callback func(Event)

const (
	queueCapacity = 10

	defaultPollInterval = 10 * time.Millisecond
	// A joint hold shorter than this is a simultaneous gesture; longer
	// concurrent holds count as two independent presses.
	defaultSimultaneousThreshold = 100 * time.Millisecond
	defaultEnqueueTimeout        = 50 * time.Millisecond
)

// Coordinator owns the bounded event queue. Debounce callbacks are the
// producers (non-blocking, drop on full); a single consumer goroutine
// dispatches to the registered callback.
type Coordinator struct {
	drv debounce.Driver

	queue chan Event

	mu sync.Mutex
	cb Callback

	pollInterval   time.Duration
	simThreshold   time.Duration
	enqueueTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option adjusts coordinator timing, mainly for tests.
type Option func(*Coordinator)

func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.pollInterval = d }
}

func WithSimultaneousThreshold(d time.Duration) Option {
	return func(c *Coordinator) { c.simThreshold = d }
}

func WithEnqueueTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.enqueueTimeout = d }
}

// New registers the per-button callbacks with the debounce driver and
// returns the coordinator. Start must be called to begin delivery.
func New(drv debounce.Driver, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		drv:            drv,
		queue:          make(chan Event, queueCapacity),
		pollInterval:   defaultPollInterval,
		simThreshold:   defaultSimultaneousThreshold,
		enqueueTimeout: defaultEnqueueTimeout,
		stopCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	kinds := []debounce.EventKind{
		debounce.SingleClick,
		debounce.DoubleClick,
		debounce.LongPressStart,
		debounce.Release,
	}
	for _, btn := range []debounce.Button{debounce.ButtonUp, debounce.ButtonDown} {
		for _, kind := range kinds {
			if err := drv.RegisterCallback(btn, kind, c.enqueueFromDriver); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

// SetCallback registers the single consumer callback.
func (c *Coordinator) SetCallback(cb Callback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

// Start launches the simultaneous-press poller and the consumer.
func (c *Coordinator) Start() {
	go c.pollSimultaneous()
	go c.consume()
}

func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// enqueueFromDriver runs in the debounce driver's callback context. It
// must never block: on a full queue the event is dropped.
func (c *Coordinator) enqueueFromDriver(btn debounce.Button, kind debounce.EventKind) {
	ev := Event{Kind: kindOf(kind), Button: btn}
	select {
	case c.queue <- ev:
	default:
		logrus.WithFields(logrus.Fields{
			"kind":   ev.Kind,
			"button": btn,
		}).Warn("button event queue full, dropping event")
	}
}

// pollSimultaneous samples the held state of both buttons and
// synthesizes a SimultaneousPress when a joint hold ends within the
// simultaneity threshold.
func (c *Coordinator) pollSimultaneous() {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	bothPressed := false
	var pressStart time.Time

	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			up := c.drv.IsPressed(debounce.ButtonUp)
			down := c.drv.IsPressed(debounce.ButtonDown)

			switch {
			case up && down && !bothPressed:
				bothPressed = true
				pressStart = now
			case !up || !down:
				if bothPressed && now.Sub(pressStart) < c.simThreshold {
					c.enqueueWait(Event{Kind: SimultaneousPress, Button: debounce.ButtonNone})
				}
				bothPressed = false
			}
		}
	}
}

// enqueueWait runs outside interrupt context and may block briefly on
// a full queue, but never indefinitely.
func (c *Coordinator) enqueueWait(ev Event) {
	select {
	case c.queue <- ev:
	case <-time.After(c.enqueueTimeout):
		logrus.WithField("kind", ev.Kind).Warn("button event queue full, dropping event")
	case <-c.stopCh:
	}
}

// consume blocks on the queue and dispatches in FIFO order.
func (c *Coordinator) consume() {
	for {
		select {
		case <-c.stopCh:
			return
		case ev := <-c.queue:
			logrus.WithFields(logrus.Fields{
				"kind":   ev.Kind,
				"button": ev.Button,
			}).Debug("button event")

			c.mu.Lock()
			cb := c.cb
			c.mu.Unlock()
			if cb != nil {
				cb(ev)
			}
		}
	}
}
