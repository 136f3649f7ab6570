package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Sender writes a single message to the output transport
type Sender func(msg gomidi.Message) error

// Sync serializes a sender so the clock goroutine and the foreground loop
// never interleave bytes of two messages on the wire
func Sync(send Sender) Sender {
	var mu sync.Mutex
	return func(msg gomidi.Message) error {
		mu.Lock()
		defer mu.Unlock()
		return send(msg)
	}
}

// Tee sends to every non-nil sender, returning the first error
func Tee(senders ...Sender) Sender {
	return func(msg gomidi.Message) error {
		var first error
		for _, s := range senders {
			if s == nil {
				continue
			}
			if err := s(msg); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

// Discard drops every message
func Discard(gomidi.Message) error { return nil }

// OpenPortSender opens the first output port whose name contains name
// (case-insensitive)
func OpenPortSender(name string) (Sender, string, error) {
	port, err := FindOutPort(name)
	if err != nil {
		return nil, "", err
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, "", fmt.Errorf("open output %q: %w", port.String(), err)
	}
	return send, port.String(), nil
}

// OpenVirtualSender creates a virtual output port other programs can connect to
func OpenVirtualSender(name string) (Sender, error) {
	drv, ok := drivers.Get().(*rtmididrv.Driver)
	if !ok {
		return nil, fmt.Errorf("virtual ports need the rtmidi driver")
	}
	out, err := drv.OpenVirtualOut(name)
	if err != nil {
		return nil, fmt.Errorf("open virtual output %q: %w", name, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, err
	}
	return send, nil
}

// FindOutPort finds an output port by case-insensitive substring
func FindOutPort(name string) (drivers.Out, error) {
	for _, port := range gomidi.GetOutPorts() {
		if containsCI(port.String(), name) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("output port %q not found", name)
}

// FindInPort finds an input port by case-insensitive substring
func FindInPort(name string) (drivers.In, error) {
	for _, port := range gomidi.GetInPorts() {
		if containsCI(port.String(), name) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("input port %q not found", name)
}

// Decode turns a raw message into an Event; ok is false for anything the
// keyboard does not speak
func Decode(msg gomidi.Message) (Event, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{Type: NoteOn, Channel: ch, Note: key, Velocity: vel}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{Type: NoteOff, Channel: ch, Note: key}, true
	case msg.GetControlChange(&ch, &key, &vel):
		return Event{Type: CC, Channel: ch, Note: key, Velocity: vel}, true
	}
	b := []byte(msg)
	if len(b) == 1 && IsRealtime(b[0]) {
		return Event{Type: b[0]}, true
	}
	return Event{}, false
}

// Recorder captures everything sent through it
type Recorder struct {
	mu   sync.Mutex
	msgs []gomidi.Message
}

// Send implements Sender
func (r *Recorder) Send(msg gomidi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, append(gomidi.Message(nil), msg...))
	return nil
}

// Messages returns a copy of the captured messages
func (r *Recorder) Messages() []gomidi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]gomidi.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Events returns the captured messages decoded, skipping unknown ones
func (r *Recorder) Events() []Event {
	var out []Event
	for _, msg := range r.Messages() {
		if ev, ok := Decode(msg); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Count returns how many captured events have the given type and note.
// Realtime events ignore note.
func (r *Recorder) Count(typ, note uint8) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Type != typ {
			continue
		}
		if IsRealtime(typ) || ev.Note == note {
			n++
		}
	}
	return n
}

// Reset forgets the captured messages
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}
