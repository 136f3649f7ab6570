package sequencer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRecordLayout(t *testing.T) {
	modes := DefaultModes()
	modes.Octave = 4
	modes.ArpMode = ArpSequence

	var buf bytes.Buffer
	require.NoError(t, SettingsFrom(modes).Save(&buf))
	assert.Equal(t, settingsSize, buf.Len())
	assert.Equal(t, []byte{0x4C, 0x4C, 0x41, 0x48}, buf.Bytes()[:4])
	assert.Equal(t, byte(4), buf.Bytes()[5])
	assert.Equal(t, byte(ArpSequence), buf.Bytes()[10])
}

func TestLoadSettingsRestoresStoredFields(t *testing.T) {
	assert := assert.New(t)
	stored := DefaultModes()
	stored.PlayType = PlayAdditive
	stored.Octave = 5
	stored.Scale = ScaleLocrian
	stored.ChordType = ChordFolded
	stored.RootKey = 7
	stored.ArpMode = ArpDown
	stored.ArpRate = RateTriplet
	stored.DutyCycle = 80
	stored.ArpActive = true

	var buf bytes.Buffer
	require.NoError(t, SettingsFrom(stored).Save(&buf))

	got, err := LoadSettings(&buf, DefaultModes())
	require.NoError(t, err)
	assert.Equal(PlayAdditive, got.PlayType)
	assert.Equal(5, got.Octave)
	assert.Equal(ScaleLocrian, got.Scale)
	assert.Equal(ChordFolded, got.ChordType)
	assert.Equal(7, got.RootKey)
	assert.Equal(ArpDown, got.ArpMode)
	assert.Equal(RateTriplet, got.ArpRate)
	assert.Equal(80, got.DutyCycle)
	assert.False(got.ArpActive, "on/off state is not persisted")
}

func TestLoadSettingsBadMagicKeepsDefaults(t *testing.T) {
	s := SettingsFrom(DefaultModes())
	s.Octave = 7
	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))
	data := buf.Bytes()
	data[0] = 0xFF

	got, err := LoadSettings(bytes.NewReader(data), DefaultModes())
	assert.ErrorIs(t, err, ErrBadMagic)
	assert.Equal(t, DefaultModes(), got)
}

func TestLoadSettingsShortRead(t *testing.T) {
	got, err := LoadSettings(bytes.NewReader([]byte{0x4C, 0x4C, 0x41}), DefaultModes())
	assert.Error(t, err)
	assert.Equal(t, DefaultModes(), got)
}

func TestSettingsOutOfRangeFieldsIgnored(t *testing.T) {
	s := Settings{Magic: SettingsMagic, Octave: 42, Scale: -1, ArpRate: 9, DutyCycle: 0, RootKey: 12}
	got := s.Apply(DefaultModes())
	assert.Equal(t, DefaultOctave, got.Octave)
	assert.Equal(t, ScaleIonian, got.Scale)
	assert.Equal(t, RateEighth, got.ArpRate)
	assert.Equal(t, DefaultDutyCycle, got.DutyCycle)
	assert.Equal(t, 0, got.RootKey)
}

func TestSettingsFileRoundTripAndGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "settings.bin")

	// missing file: defaults
	assert.Equal(t, DefaultModes(), LoadSettingsFile(path, DefaultModes()))

	modes := DefaultModes()
	modes.Octave = 2
	require.NoError(t, SaveSettingsFile(path, modes))
	assert.Equal(t, 2, LoadSettingsFile(path, DefaultModes()).Octave)

	// garbage is ignored and left in place
	require.NoError(t, os.WriteFile(path, []byte("not a settings record"), 0644))
	assert.Equal(t, DefaultModes(), LoadSettingsFile(path, DefaultModes()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not a settings record", string(data))
}
