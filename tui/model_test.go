package tui

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hallkeys/config"
	"hallkeys/midi"
	"hallkeys/sequencer"
	"hallkeys/theme"
)

func newTestModel() (Model, *midi.Recorder) {
	rec := &midi.Recorder{}
	mgr := sequencer.NewManager(rec.Send, sequencer.DefaultModes(), sequencer.DefaultOptions())
	return NewModel(mgr, nil, theme.New(nil), config.DefaultKeymap), rec
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		msg = tea.KeyMsg{Type: tea.KeyCtrlS}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModeKeys(t *testing.T) {
	assert := assert.New(t)
	m, _ := newTestModel()
	defer m.Terminal.Close()

	m = press(m, "1")
	assert.True(m.Manager.Modes().PlayActive)
	m = press(m, "4")
	assert.Equal(sequencer.PlayAdditive, m.Manager.Modes().PlayType)
	m = press(m, "5")
	assert.Equal(sequencer.ChordFolded, m.Manager.Modes().ChordType)
	m = press(m, "m")
	assert.Equal(sequencer.ArpDownUp, m.Manager.Modes().ArpMode)
	m = press(m, "x")
	assert.Equal(sequencer.DefaultOctave+1, m.Manager.Modes().Octave)
	m = press(m, "c")
	assert.Equal(sequencer.ScalePower8, m.Manager.Modes().Scale)
	m = press(m, "b")
	assert.Equal(11, m.Manager.Modes().RootKey)
	m = press(m, "]")
	assert.Equal(60, m.Manager.Modes().DutyCycle)
}

func TestPanicKey(t *testing.T) {
	m, rec := newTestModel()
	defer m.Terminal.Close()

	m = press(m, "esc")
	assert.Equal(t, 1, rec.Count(midi.CC, midi.AllNotesOff))
	assert.Contains(t, m.View(), "all notes off")
}

func TestSaveSettingsKey(t *testing.T) {
	m, _ := newTestModel()
	defer m.Terminal.Close()
	m.SettingsPath = filepath.Join(t.TempDir(), "settings.bin")

	m = press(m, "2")
	m = press(m, "ctrl+s")
	assert.Contains(t, m.View(), "settings saved")

	modes := sequencer.LoadSettingsFile(m.SettingsPath, sequencer.DefaultModes())
	assert.True(t, modes.ChordActive)
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestModel()
	defer m.Terminal.Close()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd, "q quits")
	assert.Empty(t, next.(Model).View())
}

func TestDeviceEvents(t *testing.T) {
	m, _ := newTestModel()
	defer m.Terminal.Close()
	m.DeviceMgr = midi.NewDeviceManager(nil, 48)

	kb, err := midi.NewKeyboardController("KeyStep", nil, 48)
	require.NoError(t, err)
	next, _ := m.Update(DeviceEventMsg{Type: midi.DeviceConnected, Controller: kb, ID: "KeyStep"})
	m = next.(Model)
	assert.Contains(t, m.View(), "keyboards: KeyStep")

	next, _ = m.Update(DeviceEventMsg{Type: midi.DeviceDisconnected, ID: "KeyStep"})
	m = next.(Model)
	assert.NotContains(t, m.View(), "keyboards:")
	kb.Close()
}

func TestViewShowsState(t *testing.T) {
	m, _ := newTestModel()
	defer m.Terminal.Close()
	v := m.View()
	assert.Contains(t, v, "hallkeys")
	assert.Contains(t, v, "PLAY Hold")
	assert.Contains(t, v, "ARP Up/Down 1/8 50%")
	assert.Contains(t, v, "root C")
}
