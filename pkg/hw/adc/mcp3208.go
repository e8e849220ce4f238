package adc

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/blindd/blindd/pkg/hw/gpio"
)

// MCP3208Config configures the SPI ADC and the sensor excitation pin.
type MCP3208Config struct {
	// Channel is the MCP3208 input channel (0-7) the potentiometer
	// wiper is wired to.
	Channel int
	// PowerPin switches the potentiometer supply (BCM numbering).
	PowerPin int
	// Stabilization is how long to wait after power-on before the
	// reading is trusted.
	Stabilization time.Duration
}

// MCP3208 samples a potentiometer through an MCP3208 12-bit ADC on
// SPI0. The raw range is 0-4095; calibration maps it to travel bounds.
type MCP3208 struct {
	gpio gpio.Driver
	cfg  MCP3208Config

	mu sync.Mutex
}

var _ Sampler = (*MCP3208)(nil)

func NewMCP3208(g gpio.Driver, cfg MCP3208Config) (*MCP3208, error) {
	if cfg.Channel < 0 || cfg.Channel > 7 {
		return nil, pkgerrors.Errorf("mcp3208 channel must be 0-7, got %d", cfg.Channel)
	}

	if err := g.SetupPin(cfg.PowerPin, gpio.Output); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to set up sensor power pin")
	}
	if err := g.WritePin(cfg.PowerPin, gpio.Low); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to power down sensor")
	}

	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to begin SPI")
	}
	rpio.SpiSpeed(1000000)

	return &MCP3208{gpio: g, cfg: cfg}, nil
}

func (m *MCP3208) PowerOn() error {
	if err := m.gpio.WritePin(m.cfg.PowerPin, gpio.High); err != nil {
		return pkgerrors.Wrap(err, "failed to power on sensor")
	}
	time.Sleep(m.cfg.Stabilization)
	return nil
}

func (m *MCP3208) PowerOff() error {
	return m.gpio.WritePin(m.cfg.PowerPin, gpio.Low)
}

// SampleRaw performs one single-ended conversion. Returns -1 on an
// out-of-range result, which the position reader treats as a read
// error and recovers from.
func (m *MCP3208) SampleRaw() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Start bit + single-ended mode + channel, then two clocking bytes.
	buf := []byte{
		0x06 | byte(m.cfg.Channel>>2),
		byte(m.cfg.Channel&0x03) << 6,
		0x00,
	}
	rpio.SpiExchange(buf)

	v := int(buf[1]&0x0F)<<8 | int(buf[2])
	if v < 0 || v > 4095 {
		logrus.WithField("raw", v).Error("mcp3208 returned out-of-range sample")
		return -1
	}
	return v
}

// Close releases the SPI bus.
func (m *MCP3208) Close() {
	rpio.SpiEnd(rpio.Spi0)
}
