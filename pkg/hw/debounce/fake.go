package debounce

import "sync"

// Fake is a scriptable Driver for tests. Tests fire events directly
// and toggle the held state the coordinator's poller observes.
type Fake struct {
	mu        sync.Mutex
	callbacks map[Button]map[EventKind][]Callback
	pressed   map[Button]bool
}

var _ Driver = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		callbacks: make(map[Button]map[EventKind][]Callback),
		pressed:   make(map[Button]bool),
	}
}

func (f *Fake) RegisterCallback(btn Button, kind EventKind, cb Callback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callbacks[btn] == nil {
		f.callbacks[btn] = make(map[EventKind][]Callback)
	}
	f.callbacks[btn][kind] = append(f.callbacks[btn][kind], cb)
	return nil
}

func (f *Fake) IsPressed(btn Button) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pressed[btn]
}

// SetPressed sets the held state returned by IsPressed.
func (f *Fake) SetPressed(btn Button, pressed bool) {
	f.mu.Lock()
	f.pressed[btn] = pressed
	f.mu.Unlock()
}

// Fire invokes all callbacks registered for the given button and kind,
// synchronously on the caller's goroutine.
func (f *Fake) Fire(btn Button, kind EventKind) {
	f.mu.Lock()
	cbs := append([]Callback(nil), f.callbacks[btn][kind]...)
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(btn, kind)
	}
}
