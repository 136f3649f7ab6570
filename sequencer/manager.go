package sequencer

import (
	"context"
	"sync"
	"time"

	"hallkeys/clock"
	"hallkeys/debug"
	"hallkeys/midi"
)

// Options configure the engine's outputs and clock behaviour
type Options struct {
	Channel          uint8 // 0-based output channel
	Velocity         uint8
	BPM              float64
	ClockOut         bool // run the internal generator while the arpeggiator plays
	StopClockWithArp bool // stop the generator when the arpeggiator is switched off
	ClockThru        bool // forward received realtime bytes
}

// DefaultOptions returns the stock engine options
func DefaultOptions() Options {
	return Options{
		Velocity:         midi.DefaultVelocity,
		BPM:              clock.DefaultBPM,
		ClockOut:         true,
		StopClockWithArp: true,
	}
}

// Poll interval of the foreground loop
const pollInterval = time.Millisecond

// UI refresh rate
const uiFPS = 30

// Manager is the engine: it owns the pool, the arpeggiator, the coordinator
// and the clock arbiter, and runs the foreground loop over them
type Manager struct {
	mu    sync.Mutex
	opts  Options
	send  midi.Sender
	pool  *NotePool
	arp   *Arpeggiator
	coord *Coordinator
	arb   *clock.Arbiter

	lights [midi.NumKeys]bool

	keyChan      chan midi.KeyEvent
	realtimeChan chan midi.RealtimeEvent

	now func() time.Time

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager creates an engine writing to send
func NewManager(send midi.Sender, modes Modes, opts Options) *Manager {
	if send == nil {
		send = midi.Discard
	}
	send = midi.Sync(send)
	if opts.Velocity == 0 {
		opts.Velocity = midi.DefaultVelocity
	}

	m := &Manager{
		opts:         opts,
		send:         send,
		keyChan:      make(chan midi.KeyEvent, 64),
		realtimeChan: make(chan midi.RealtimeEvent, 512),
		now:          time.Now,
		UpdateChan:   make(chan struct{}, 1),
	}
	m.pool = NewNotePool(send, opts.Channel, opts.Velocity)
	m.arp = NewArpeggiator(m.pool)
	m.coord = NewCoordinator(m.pool, m.arp, modes)
	m.coord.SetIndicator(m)
	m.coord.OnArpChange(m.arpChanged)

	m.arb = clock.NewArbiter(send, opts.BPM, m.now())
	if opts.ClockThru {
		m.arb.SetThru(send)
	}
	m.arb.OnDownbeat(m.arp.Downbeat)
	if modes.ArpActive {
		m.arpChanged(true)
	}
	return m
}

// SetIndicator records key light state for the UI (called with mu held)
func (m *Manager) SetIndicator(key int, on bool) {
	if key >= 0 && key < midi.NumKeys {
		m.lights[key] = on
	}
}

// KeyInput returns the channel key sources push edges into
func (m *Manager) KeyInput() chan<- midi.KeyEvent {
	return m.keyChan
}

// RealtimeInput returns the channel realtime readers push bytes into
func (m *Manager) RealtimeInput() chan<- midi.RealtimeEvent {
	return m.realtimeChan
}

// Attach forwards a controller's key edges and realtime bytes to the engine
// until the controller closes its channels
func (m *Manager) Attach(c midi.Controller) {
	debug.Log("engine", "attach %s (%s)", c.ID(), c.Type())
	go func() {
		for ev := range c.KeyEvents() {
			select {
			case m.keyChan <- ev:
			default:
				debug.Log("engine", "key queue full, dropping %+v", ev)
			}
		}
	}()
	if rt := c.Realtime(); rt != nil {
		go func() {
			for ev := range rt {
				select {
				case m.realtimeChan <- ev:
				default:
					debug.LogEvery(100, "engine", "realtime queue full")
				}
			}
		}()
	}
}

// Poll runs one iteration of the foreground loop
func (m *Manager) Poll(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := false
drainRealtime:
	for {
		select {
		case ev := <-m.realtimeChan:
			wasExternal := m.arb.External()
			m.arb.Feed(ev.Byte, ev.At)
			changed = changed || wasExternal != m.arb.External()
		default:
			break drainRealtime
		}
	}
	if m.arb.Poll(now) {
		changed = true
	}

drainKeys:
	for {
		select {
		case ev := <-m.keyChan:
			m.coord.HandleKey(ev)
			changed = true
		default:
			break drainKeys
		}
	}

	if m.coord.Modes().ArpActive {
		m.arp.Poll(now, m.arb.View(now))
	}
	if changed {
		m.notify()
	}
}

// Run drives the clock generator and the foreground loop until ctx is done.
// On return every note is off and the generator is stopped.
func (m *Manager) Run(ctx context.Context) {
	go m.arb.Generator().Run(ctx)

	ticker := time.NewTicker(pollInterval)
	uiTicker := time.NewTicker(time.Second / uiFPS)
	defer ticker.Stop()
	defer uiTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case <-ticker.C:
			m.Poll(m.now())
		case <-uiTicker.C:
			m.notify()
		}
	}
}

// Shutdown stops the generator and silences everything
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arb.Stop()
	m.coord.UndoAll()
	m.arp.Deactivate()
	m.pool.ReleaseAll()
	debug.Log("engine", "shutdown")
}

func (m *Manager) arpChanged(active bool) {
	now := m.now()
	switch {
	case active && m.opts.ClockOut && !m.arb.Running():
		m.arb.Start(now)
	case !active && m.opts.StopClockWithArp:
		m.arb.Stop()
	}
}

// notify refreshes the TUI without blocking
func (m *Manager) notify() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

// control runs fn under the engine lock and notifies the UI
func (m *Manager) control(fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	m.notify()
}

// Mode switches

func (m *Manager) TogglePlay() { m.control(m.coord.TogglePlay) }
func (m *Manager) ToggleChord() { m.control(m.coord.ToggleChord) }
func (m *Manager) ToggleArp() { m.control(m.coord.ToggleArp) }
func (m *Manager) SetPlayType(t PlayType) { m.control(func() { m.coord.SetPlayType(t) }) }
func (m *Manager) SetChordType(t ChordType) { m.control(func() { m.coord.SetChordType(t) }) }
func (m *Manager) SetArpMode(a ArpMode) { m.control(func() { m.coord.SetArpMode(a) }) }
func (m *Manager) SetArpRate(r ArpRate) { m.control(func() { m.coord.SetArpRate(r) }) }
func (m *Manager) SetDutyCycle(d int) { m.control(func() { m.coord.SetDutyCycle(d) }) }
func (m *Manager) SetScale(s Scale) { m.control(func() { m.coord.SetScale(s) }) }
func (m *Manager) SetRootKey(k int) { m.control(func() { m.coord.SetRootKey(k) }) }
func (m *Manager) SetOctave(o int) { m.control(func() { m.coord.SetOctave(o) }) }

// ShiftOctave moves the octave of future presses by delta
func (m *Manager) ShiftOctave(delta int) {
	m.control(func() { m.coord.SetOctave(m.coord.Modes().Octave + delta) })
}

// Press injects a key press, bypassing the input queue
func (m *Manager) Press(key int) { m.control(func() { m.coord.Press(key) }) }

// Release injects a key release, bypassing the input queue
func (m *Manager) Release(key int) { m.control(func() { m.coord.Release(key) }) }

// Clock controls

// Tap feeds tap tempo and makes the tap the new downbeat
func (m *Manager) Tap(at time.Time) {
	m.control(func() {
		m.arb.Tap(at)
		m.arb.Resync(at, m.now())
	})
}

// Resync makes pressedAt the new downbeat
func (m *Manager) Resync(pressedAt time.Time) {
	m.control(func() { m.arb.Resync(pressedAt, m.now()) })
}

// SetBPM sets the internal tempo
func (m *Manager) SetBPM(bpm float64) {
	m.control(func() { m.arb.SetBPM(bpm) })
}

// StartClock starts the internal generator
func (m *Manager) StartClock() {
	m.control(func() { m.arb.Start(m.now()) })
}

// ContinueClock resumes the internal generator without moving the downbeat
func (m *Manager) ContinueClock() {
	m.control(func() { m.arb.Continue(m.now()) })
}

// StopClock stops the internal generator
func (m *Manager) StopClock() {
	m.control(m.arb.Stop)
}

// ToggleClock starts or stops the internal generator
func (m *Manager) ToggleClock() {
	m.control(func() {
		if m.arb.Generator().Running() {
			m.arb.Stop()
		} else {
			m.arb.Start(m.now())
		}
	})
}

// Panic sends All Notes Off and clears the pool. Key records and the
// arpeggiator are reset too so nothing comes back on its own.
func (m *Manager) Panic() {
	m.control(func() {
		m.coord.UndoAll()
		m.arp.Deactivate()
		if m.coord.Modes().ArpActive {
			m.arp.WaitForDownbeat()
		}
		m.pool.Panic()
	})
}

// Modes returns the current modes
func (m *Manager) Modes() Modes {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coord.Modes()
}

// SaveSettings persists the user's modes to path. A play mode forced by
// Sequence auto-hold is not stored.
func (m *Manager) SaveSettings(path string) error {
	m.mu.Lock()
	modes := m.coord.StoredModes()
	m.mu.Unlock()
	return SaveSettingsFile(path, modes)
}

// Snapshot is a copy of the engine state for display
type Snapshot struct {
	Modes    Modes
	Policy   string
	AutoHold bool

	Source  clock.Source
	BPM     float64
	Running bool
	Pulse   int
	Beat    int

	ArpState ArpState
	Waiting  bool
	Held     []uint8
	Sounding []uint8
	Lights   [midi.NumKeys]bool
}

// Snapshot returns the current engine state
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	phase := m.arb.Phase()
	return Snapshot{
		Modes:    m.coord.Modes(),
		Policy:   m.coord.Policy(),
		AutoHold: m.coord.AutoHold(),
		Source:   m.arb.Source(),
		BPM:      m.arb.BPM(),
		Running:  m.arb.Running(),
		Pulse:    phase.Pulse(),
		Beat:     phase.Beat(),
		ArpState: m.arp.State(),
		Waiting:  m.arp.Waiting(),
		Held:     m.arp.Held(),
		Sounding: m.pool.Active(),
		Lights:   m.lights,
	}
}
