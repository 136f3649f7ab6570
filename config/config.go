package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultKeymap maps terminal keys onto the 13 keys, lowest first
const DefaultKeymap = "awsedftgyhujk"

// PortConfig selects a MIDI transport. Serial wins over Port when both are set.
type PortConfig struct {
	Serial string `yaml:"serial,omitempty"` // e.g. /dev/ttyUSB0
	Baud   int    `yaml:"baud,omitempty"`
	Port   string `yaml:"port,omitempty"` // substring of a MIDI port name
}

// IsSerial reports whether the transport is a serial device
func (p PortConfig) IsSerial() bool {
	return p.Serial != ""
}

// IsZero reports whether no transport is configured
func (p PortConfig) IsZero() bool {
	return p.Serial == "" && p.Port == ""
}

func (p PortConfig) String() string {
	switch {
	case p.Serial != "":
		return "serial:" + p.Serial
	case p.Port != "":
		return "port:" + p.Port
	}
	return "none"
}

// KeyboardConfig picks up MIDI keyboards as key sources
type KeyboardConfig struct {
	Patterns []string `yaml:"patterns,flow,omitempty"`
	BaseNote uint8    `yaml:"baseNote"`
}

// ClockConfig controls the clock outputs
type ClockConfig struct {
	BPM         float64 `yaml:"bpm"`
	Out         bool    `yaml:"out"`
	Thru        bool    `yaml:"thru"`
	StopWithArp bool    `yaml:"stopWithArp"`
}

// Config is the main configuration structure
type Config struct {
	Output   PortConfig     `yaml:"output"`
	Input    PortConfig     `yaml:"input"`
	Keyboard KeyboardConfig `yaml:"keyboard"`
	Clock    ClockConfig    `yaml:"clock"`
	Channel  int            `yaml:"channel"` // 1-16
	Velocity int            `yaml:"velocity"`
	Keymap   string         `yaml:"keymap"`
	Debug    bool           `yaml:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Keyboard: KeyboardConfig{
			BaseNote: 48,
		},
		Clock: ClockConfig{
			BPM:         120,
			Out:         true,
			StopWithArp: true,
		},
		Channel:  1,
		Velocity: 0x45,
		Keymap:   DefaultKeymap,
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Channel < 1 || c.Channel > 16 {
		return fmt.Errorf("channel %d out of range 1-16", c.Channel)
	}
	if c.Velocity < 1 || c.Velocity > 127 {
		return fmt.Errorf("velocity %d out of range 1-127", c.Velocity)
	}
	if c.Clock.BPM < 30 || c.Clock.BPM > 300 {
		return fmt.Errorf("bpm %g out of range 30-300", c.Clock.BPM)
	}
	if c.Keyboard.BaseNote > 127-12 {
		return fmt.Errorf("base note %d leaves no room for 13 keys", c.Keyboard.BaseNote)
	}
	if n := len([]rune(c.Keymap)); n != 13 {
		return fmt.Errorf("keymap needs 13 keys, got %d", n)
	}
	return nil
}

// OutputChannel returns the 0-based channel
func (c *Config) OutputChannel() uint8 {
	return uint8(c.Channel - 1)
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hallkeys"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from its default location, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads a config file. Keys missing from the file keep their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to its default location
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating the directory if needed
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
