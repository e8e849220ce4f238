// Package adc provides raw analog sampling for the position
// potentiometer. The sensor is only powered while a sample is taken to
// avoid heating the resistive track.
package adc

import "sync"

// Sampler is the raw sampling interface the position reader uses.
// SampleRaw returns a negative value on read error.
type Sampler interface {
	PowerOn() error
	SampleRaw() int
	PowerOff() error
}

// Fake is a scriptable Sampler for tests. Samples are returned in
// order; the last value repeats once the script is exhausted.
type Fake struct {
	mu      sync.Mutex
	Samples []int
	idx     int

	PoweredOn  int
	PoweredOff int
}

var _ Sampler = (*Fake)(nil)

func NewFake(samples ...int) *Fake {
	return &Fake{Samples: samples}
}

func (f *Fake) PowerOn() error {
	f.mu.Lock()
	f.PoweredOn++
	f.mu.Unlock()
	return nil
}

func (f *Fake) PowerOff() error {
	f.mu.Lock()
	f.PoweredOff++
	f.mu.Unlock()
	return nil
}

func (f *Fake) SampleRaw() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Samples) == 0 {
		return -1
	}
	v := f.Samples[f.idx]
	if f.idx < len(f.Samples)-1 {
		f.idx++
	}
	return v
}

// SetSamples replaces the sample script and rewinds it.
func (f *Fake) SetSamples(samples ...int) {
	f.mu.Lock()
	f.Samples = samples
	f.idx = 0
	f.mu.Unlock()
}
