package midi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"go.bug.st/serial"

	"hallkeys/debug"
)

// DefaultBaud is the DIN MIDI baud rate. USB-serial bridges usually accept it too.
const DefaultBaud = 31250

// SerialPort wraps a go.bug.st/serial port used as a raw MIDI byte stream
type SerialPort struct {
	name string
	port serial.Port
}

// SerialPorts lists the serial devices present on the system
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// OpenSerial opens the named serial device at the given baud rate
func OpenSerial(name string, baud int) (*SerialPort, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	// Short read timeout so the reader loop notices cancellation
	if err := p.SetReadTimeout(50 * time.Millisecond); err != nil {
		p.Close()
		return nil, fmt.Errorf("serial %s read timeout: %w", name, err)
	}
	debug.Log("serial", "opened %s baud=%d", name, baud)
	return &SerialPort{name: name, port: p}, nil
}

// Send writes one message. Implements Sender via method value.
func (s *SerialPort) Send(msg gomidi.Message) error {
	_, err := s.port.Write([]byte(msg))
	if err != nil {
		debug.Log("serial", "write error: %v", err)
	}
	return err
}

// ReadRealtime pumps realtime bytes from the port until ctx is done
func (s *SerialPort) ReadRealtime(ctx context.Context, out chan<- RealtimeEvent) error {
	return ReadRealtime(ctx, s.port, time.Now, out)
}

// Close closes the port
func (s *SerialPort) Close() error {
	debug.Log("serial", "closing %s", s.name)
	return s.port.Close()
}

// ReadRealtime reads a raw MIDI byte stream and forwards only the realtime
// bytes, stamped with now(). Everything else is ignored. A full channel drops
// the byte rather than blocking the reader.
func ReadRealtime(ctx context.Context, r io.Reader, now func() time.Time, out chan<- RealtimeEvent) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		at := now()
		for _, b := range buf[:n] {
			if !IsRealtime(b) {
				continue
			}
			select {
			case out <- RealtimeEvent{Byte: b, At: at}:
			default:
				debug.LogEvery(100, "serial", "realtime channel full, dropping 0x%02X", b)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read realtime: %w", err)
		}
	}
}
