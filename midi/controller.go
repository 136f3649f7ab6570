package midi

// ControllerType identifies the kind of key source
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerKeyboard
	ControllerTerminal
)

func (t ControllerType) String() string {
	switch t {
	case ControllerKeyboard:
		return "keyboard"
	case ControllerTerminal:
		return "terminal"
	}
	return "unknown"
}

// Indicator gives visual feedback for a key. The engine never reads anything back.
type Indicator interface {
	SetIndicator(key int, on bool)
}

// Controller is a source of key edges (and possibly realtime bytes)
type Controller interface {
	ID() string
	Type() ControllerType

	// Input
	KeyEvents() <-chan KeyEvent
	Realtime() <-chan RealtimeEvent // nil if the device carries no clock

	// Output
	Indicator

	// Lifecycle
	Close() error
}
