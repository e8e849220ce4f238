package gpio

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver is the abstract interface for controlling GPIOs. It allows
// plugging in the real Raspberry Pi implementation or a mock for
// development and tests on a PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver creates a GPIO driver. If mock is true, a MockDriver is
// returned; otherwise the real rpio-backed driver.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		logrus.Info("using mock GPIO driver (development mode)")
		return NewMock(), nil
	}
	return NewRPiDriver()
}

// Mock is a test implementation that keeps pin levels in memory so
// tests can script inputs and inspect outputs.
type Mock struct {
	mu     sync.Mutex
	levels map[int]Level
}

func NewMock() *Mock {
	return &Mock{levels: make(map[int]Level)}
}

func (m *Mock) SetupPin(pin int, mode PinMode) error {
	logrus.WithFields(logrus.Fields{"pin": pin, "mode": mode}).Trace("gpio setup")
	// Inputs idle high, matching the pull-ups on real hardware.
	if mode == Input {
		m.mu.Lock()
		if _, ok := m.levels[pin]; !ok {
			m.levels[pin] = High
		}
		m.mu.Unlock()
	}
	return nil
}

func (m *Mock) WritePin(pin int, level Level) error {
	m.mu.Lock()
	m.levels[pin] = level
	m.mu.Unlock()
	return nil
}

func (m *Mock) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *Mock) Close() error { return nil }

// SetInput sets the level a subsequent ReadPin will observe. Tests use
// this to simulate external signals, e.g. a pressed button pulling a
// pin low.
func (m *Mock) SetInput(pin int, level Level) {
	m.mu.Lock()
	m.levels[pin] = level
	m.mu.Unlock()
}
