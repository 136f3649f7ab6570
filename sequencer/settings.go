package sequencer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hallkeys/debug"
)

// SettingsMagic marks a valid settings record ("HALL")
const SettingsMagic uint32 = 0x48414C4C

// settingsSize is the packed size of Settings on disk
const settingsSize = 13

// ErrBadMagic is returned when a settings record was never written or is corrupt
var ErrBadMagic = errors.New("settings: bad magic")

// Settings is the persisted part of Modes, in a fixed little-endian layout.
// Which modes are switched on is not persisted.
type Settings struct {
	Magic          uint32
	PlayType       uint8
	Octave         int8
	Scale          int8
	ChordType      int8
	ChordExtension uint8 // reserved
	RootKey        int8
	ArpMode        int8
	ArpRate        uint8
	DutyCycle      uint8
}

// SettingsFrom captures the persisted fields of m
func SettingsFrom(m Modes) Settings {
	return Settings{
		Magic:     SettingsMagic,
		PlayType:  uint8(m.PlayType),
		Octave:    int8(m.Octave),
		Scale:     int8(m.Scale),
		ChordType: int8(m.ChordType),
		RootKey:   int8(m.RootKey),
		ArpMode:   int8(m.ArpMode),
		ArpRate:   uint8(m.ArpRate),
		DutyCycle: uint8(m.DutyCycle),
	}
}

// Apply copies the stored fields onto m. Fields out of their range keep the
// value already in m.
func (s Settings) Apply(m Modes) Modes {
	if s.PlayType <= uint8(PlayAdditive) {
		m.PlayType = PlayType(s.PlayType)
	}
	if s.Octave >= 0 && int(s.Octave) <= MaxOctave {
		m.Octave = int(s.Octave)
	}
	if s.Scale >= 0 && int(s.Scale) < NumScales {
		m.Scale = Scale(s.Scale)
	}
	if s.ChordType >= 0 && s.ChordType <= int8(ChordFolded) {
		m.ChordType = ChordType(s.ChordType)
	}
	if s.RootKey >= 0 && s.RootKey < 12 {
		m.RootKey = int(s.RootKey)
	}
	if s.ArpMode >= 0 && int(s.ArpMode) < NumArpModes {
		m.ArpMode = ArpMode(s.ArpMode)
	}
	if int(s.ArpRate) < NumArpRates {
		m.ArpRate = ArpRate(s.ArpRate)
	}
	if s.DutyCycle >= 1 && s.DutyCycle <= 100 {
		m.DutyCycle = int(s.DutyCycle)
	}
	return m
}

// Save writes the record
func (s Settings) Save(w io.Writer) error {
	s.Magic = SettingsMagic
	return binary.Write(w, binary.LittleEndian, s)
}

// LoadSettings reads a record from r and applies it over defaults. A short
// read or a bad magic leaves defaults untouched and returns the reason.
func LoadSettings(r io.Reader, defaults Modes) (Modes, error) {
	var s Settings
	if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
		return defaults, fmt.Errorf("read settings: %w", err)
	}
	if s.Magic != SettingsMagic {
		return defaults, ErrBadMagic
	}
	return s.Apply(defaults), nil
}

// SettingsPath returns the default settings file location
func SettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hallkeys", "settings.bin"), nil
}

// LoadSettingsFile loads path over defaults. A missing or invalid file is
// not an error: the defaults are kept and the file is left alone.
func LoadSettingsFile(path string, defaults Modes) Modes {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			debug.Log("settings", "read %s: %v", path, err)
		}
		return defaults
	}
	m, err := LoadSettings(bytes.NewReader(data), defaults)
	if err != nil {
		debug.Log("settings", "ignoring %s: %v", path, err)
		return defaults
	}
	return m
}

// SaveSettingsFile writes the persisted fields of m to path
func SaveSettingsFile(path string, m Modes) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(settingsSize)
	if err := SettingsFrom(m).Save(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	debug.Log("settings", "saved %s", path)
	return nil
}
