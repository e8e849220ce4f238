package motor

import "sync"

// Fake is an in-memory Motor for tests and mock-hardware runs. It
// records every command and reports IsMoving until Stop is called.
type Fake struct {
	mu sync.Mutex

	Dir       Direction
	Speed     uint32
	StepCalls []uint32
	StopCalls int
	moving    bool
}

var _ Motor = (*Fake)(nil)

func NewFake() *Fake { return &Fake{} }

func (f *Fake) SetDirection(d Direction) {
	f.mu.Lock()
	f.Dir = d
	f.mu.Unlock()
}

func (f *Fake) SetSpeed(stepsPerSecond uint32) {
	f.mu.Lock()
	f.Speed = stepsPerSecond
	f.mu.Unlock()
}

func (f *Fake) Step(count uint32) {
	f.mu.Lock()
	f.StepCalls = append(f.StepCalls, count)
	f.moving = true
	f.mu.Unlock()
}

func (f *Fake) IsMoving() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moving
}

func (f *Fake) Stop() {
	f.mu.Lock()
	f.StopCalls++
	f.moving = false
	f.mu.Unlock()
}

// LastStep returns the most recent Step argument, or 0 if none.
func (f *Fake) LastStep() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.StepCalls) == 0 {
		return 0
	}
	return f.StepCalls[len(f.StepCalls)-1]
}
