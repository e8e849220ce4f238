// Package debounce turns raw GPIO edges from the two physical buttons
// into discrete press-type events. Consumers treat it as a black box:
// they register callbacks per button and event kind, and may query the
// instantaneous held state.
package debounce

// Button identifies one of the two physical buttons.
type Button int

const (
	ButtonUp   Button = 0
	ButtonDown Button = 1
	// ButtonNone tags events that are not attributable to a single
	// button, such as the synthesized simultaneous press.
	ButtonNone Button = -1
)

func (b Button) String() string {
	switch b {
	case ButtonUp:
		return "up"
	case ButtonDown:
		return "down"
	default:
		return "none"
	}
}

// EventKind is the set of press types the recognizer produces.
type EventKind int

const (
	SingleClick EventKind = iota
	DoubleClick
	LongPressStart
	Release
)

func (k EventKind) String() string {
	switch k {
	case SingleClick:
		return "single-click"
	case DoubleClick:
		return "double-click"
	case LongPressStart:
		return "long-press-start"
	case Release:
		return "release"
	default:
		return "unknown"
	}
}

// Callback is invoked from the recognizer's polling goroutine. It must
// not block; anything beyond enqueueing belongs in the consumer.
type Callback func(btn Button, kind EventKind)

// Driver is the debounce interface the button event coordinator uses.
type Driver interface {
	RegisterCallback(btn Button, kind EventKind, cb Callback) error
	// IsPressed reports whether the button is physically held right now.
	IsPressed(btn Button) bool
}
