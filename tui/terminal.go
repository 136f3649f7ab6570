package tui

import (
	"sync"
	"time"

	"github.com/bep/debounce"

	"hallkeys/midi"
)

// ReleaseAfter is how long a terminal key counts as held after its last
// keystroke. Terminals report no key-up, only autorepeat, so this has to
// outlast the repeat delay.
const ReleaseAfter = 250 * time.Millisecond

// Terminal is a key source driven by the computer keyboard. The first
// keystroke presses a key, autorepeat keeps it down, and silence releases it.
type Terminal struct {
	keys []rune

	mu      sync.Mutex
	down    [midi.NumKeys]bool
	release [midi.NumKeys]func(func())
	closed  bool

	keyChan chan midi.KeyEvent
	now     func() time.Time
}

// NewTerminal maps the runes of keymap onto keys 0..12
func NewTerminal(keymap string, hold time.Duration) *Terminal {
	t := &Terminal{
		keys:    []rune(keymap),
		keyChan: make(chan midi.KeyEvent, 32),
		now:     time.Now,
	}
	for i := range t.release {
		t.release[i] = debounce.New(hold)
	}
	return t
}

// KeyFor returns the key a rune is mapped to
func (t *Terminal) KeyFor(r rune) (int, bool) {
	for i, k := range t.keys {
		if i >= midi.NumKeys {
			break
		}
		if k == r {
			return i, true
		}
	}
	return 0, false
}

// Handle consumes a keystroke. It returns false if the rune is not a key.
func (t *Terminal) Handle(r rune) bool {
	key, ok := t.KeyFor(r)
	if !ok {
		return false
	}

	t.mu.Lock()
	if !t.down[key] {
		t.down[key] = true
		t.push(midi.KeyEvent{Key: key, Pressed: true, At: t.now()})
	}
	t.mu.Unlock()

	t.release[key](func() { t.up(key) })
	return true
}

func (t *Terminal) up(key int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.down[key] {
		return
	}
	t.down[key] = false
	t.push(midi.KeyEvent{Key: key, Pressed: false, At: t.now()})
}

// push must be called with mu held
func (t *Terminal) push(ev midi.KeyEvent) {
	if t.closed {
		return
	}
	select {
	case t.keyChan <- ev:
	default:
	}
}

func (t *Terminal) ID() string {
	return "terminal"
}

func (t *Terminal) Type() midi.ControllerType {
	return midi.ControllerTerminal
}

func (t *Terminal) KeyEvents() <-chan midi.KeyEvent {
	return t.keyChan
}

func (t *Terminal) Realtime() <-chan midi.RealtimeEvent {
	return nil
}

// SetIndicator is a no-op; the model draws the indicator row from snapshots
func (t *Terminal) SetIndicator(key int, on bool) {}

func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.keyChan)
	}
	return nil
}
