package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// RawFileConfig is the YAML shape of the config file. Zero values are
// replaced with defaults at load time.
type RawFileConfig struct {
	MockGPIO           bool `yaml:"mock_gpio"`
	AllowNonRootAccess bool `yaml:"allow_non_root"`

	Motor struct {
		Pins         [4]int `yaml:"pins"`          // coil pins, BCM numbering
		DefaultSpeed uint32 `yaml:"default_speed"` // steps per second
	} `yaml:"motor"`

	Buttons struct {
		UpPin         int `yaml:"up_pin"`
		DownPin       int `yaml:"down_pin"`
		LongPressMs   int `yaml:"long_press_ms"`
		DoubleClickMs int `yaml:"double_click_ms"`
	} `yaml:"buttons"`

	Sensor struct {
		PowerPin        int    `yaml:"power_pin"`
		ADCChannel      int    `yaml:"adc_channel"`
		StabilizationMs int    `yaml:"stabilization_ms"`
		StorePath       string `yaml:"store_path"`
	} `yaml:"sensor"`

	Zebra struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"zebra"`

	Schedules []Schedule `yaml:"schedules"`
}

var _ Config = (*File)(nil)

// File is the file-backed Config implementation.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	if err := f.Load(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFileFromConfig wraps an already-parsed config, mainly for tests.
func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}
	applyDefaults(c)
	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

func applyDefaults(c *RawFileConfig) {
	if c.Motor.Pins == [4]int{} {
		c.Motor.Pins = [4]int{17, 18, 27, 22}
	}
	if c.Motor.DefaultSpeed == 0 {
		c.Motor.DefaultSpeed = 500
	}
	if c.Buttons.UpPin == 0 {
		c.Buttons.UpPin = 5
	}
	if c.Buttons.DownPin == 0 {
		c.Buttons.DownPin = 6
	}
	if c.Buttons.LongPressMs <= 0 {
		c.Buttons.LongPressMs = 1000
	}
	if c.Buttons.DoubleClickMs <= 0 {
		c.Buttons.DoubleClickMs = 300
	}
	if c.Sensor.PowerPin == 0 {
		c.Sensor.PowerPin = 23
	}
	if c.Sensor.StabilizationMs <= 0 {
		c.Sensor.StabilizationMs = 10
	}
	if c.Sensor.StorePath == "" {
		c.Sensor.StorePath = "/var/lib/blindd/calibration.json"
	}
}

func validate(c *RawFileConfig) error {
	if c.Sensor.ADCChannel < 0 || c.Sensor.ADCChannel > 7 {
		return pkgerrors.Errorf("sensor.adc_channel must be 0-7, got %d", c.Sensor.ADCChannel)
	}
	for _, s := range c.Schedules {
		if s.Percent < 0 || s.Percent > 100 {
			return pkgerrors.Errorf("schedule percent must be 0-100, got %.1f", s.Percent)
		}
	}
	return nil
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := &RawFileConfig{}

	b, err := os.ReadFile(f.filepath)
	if err != nil {
		if !os.IsNotExist(err) {
			return pkgerrors.Wrapf(err, "failed to read config file %s", f.filepath)
		}
		// Missing file means all defaults.
	} else if err := yaml.Unmarshal(b, c); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config file %s", f.filepath)
	}

	applyDefaults(c)
	if err := validate(c); err != nil {
		return err
	}

	f.c = c
	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	b, err := yaml.Marshal(f.c)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(f.filepath), 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create config directory for %s", f.filepath)
	}
	if err := os.WriteFile(f.filepath, b, 0644); err != nil {
		return pkgerrors.Wrapf(err, "failed to write config file %s", f.filepath)
	}
	return nil
}

func (f *File) MockGPIO() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.MockGPIO
}

func (f *File) AllowNonRootAccess() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.AllowNonRootAccess
}

func (f *File) SetAllowNonRootAccess(allow bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = allow
}

func (f *File) MotorPins() [4]int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.Motor.Pins
}

func (f *File) DefaultSpeed() uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.Motor.DefaultSpeed
}

func (f *File) ButtonUpPin() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.Buttons.UpPin
}

func (f *File) ButtonDownPin() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.Buttons.DownPin
}

func (f *File) LongPress() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return time.Duration(f.c.Buttons.LongPressMs) * time.Millisecond
}

func (f *File) DoubleClickWindow() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return time.Duration(f.c.Buttons.DoubleClickMs) * time.Millisecond
}

func (f *File) SensorPowerPin() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.Sensor.PowerPin
}

func (f *File) ADCChannel() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.Sensor.ADCChannel
}

func (f *File) SensorStabilization() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return time.Duration(f.c.Sensor.StabilizationMs) * time.Millisecond
}

func (f *File) StorePath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.Sensor.StorePath
}

func (f *File) ZebraEnabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.c.Zebra.Enabled
}

func (f *File) Schedules() []Schedule {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Schedule(nil), f.c.Schedules...)
}

func (f *File) SetSchedules(s []Schedule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Schedules = append([]Schedule(nil), s...)
}

func (f *File) LogrusFields() logrus.Fields {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return logrus.Fields{
		"mockGPIO":     f.c.MockGPIO,
		"motorPins":    f.c.Motor.Pins,
		"defaultSpeed": f.c.Motor.DefaultSpeed,
		"upPin":        f.c.Buttons.UpPin,
		"downPin":      f.c.Buttons.DownPin,
		"powerPin":     f.c.Sensor.PowerPin,
		"adcChannel":   f.c.Sensor.ADCChannel,
		"storePath":    f.c.Sensor.StorePath,
		"zebraEnabled": f.c.Zebra.Enabled,
		"schedules":    len(f.c.Schedules),
	}
}
