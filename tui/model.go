package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hallkeys/debug"
	"hallkeys/midi"
	"hallkeys/sequencer"
	"hallkeys/theme"
	"hallkeys/widgets"
)

type Model struct {
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager // nil when no keyboards are configured
	Theme     *theme.Theme
	Terminal  *Terminal

	// SettingsPath is where ctrl+s writes the settings record; empty disables it
	SettingsPath string

	keymap   string
	devices  []string
	message  string
	showHelp bool
	quitting bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(manager *sequencer.Manager, deviceMgr *midi.DeviceManager, th *theme.Theme, keymap string) Model {
	term := NewTerminal(keymap, ReleaseAfter)
	manager.Attach(term)
	return Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Theme:     th,
		Terminal:  term,
		keymap:    keymap,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Manager)}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && m.Terminal.Handle(msg.Runes[0]) {
			return m, nil
		}
		return m.handleControl(msg.String())

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.Manager.Attach(event.Controller)
			m.devices = append(m.devices, event.ID)
			sort.Strings(m.devices)
		case midi.DeviceDisconnected:
			m.devices = removeString(m.devices, event.ID)
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

// handleControl maps the non-note keys onto engine controls
func (m Model) handleControl(key string) (tea.Model, tea.Cmd) {
	modes := m.Manager.Modes()
	m.message = ""

	switch key {
	case "ctrl+c", "q":
		m.quitting = true
		m.Terminal.Close()
		return m, tea.Quit

	case "1":
		m.Manager.TogglePlay()
	case "2":
		m.Manager.ToggleChord()
	case "3":
		m.Manager.ToggleArp()
	case "4":
		m.Manager.SetPlayType(1 - modes.PlayType)
	case "5":
		if modes.ChordType == sequencer.ChordFolded {
			m.Manager.SetChordType(sequencer.ChordExtended)
		} else {
			m.Manager.SetChordType(sequencer.ChordFolded)
		}

	case "m":
		m.Manager.SetArpMode((modes.ArpMode + 1) % sequencer.NumArpModes)
	case "r":
		m.Manager.SetArpRate((modes.ArpRate + 1) % sequencer.NumArpRates)
	case "[":
		m.Manager.SetDutyCycle(modes.DutyCycle - 10)
	case "]":
		m.Manager.SetDutyCycle(modes.DutyCycle + 10)

	case "z":
		m.Manager.ShiftOctave(-1)
	case "x":
		m.Manager.ShiftOctave(1)
	case "c":
		m.Manager.SetScale((modes.Scale + sequencer.NumScales - 1) % sequencer.NumScales)
	case "v":
		m.Manager.SetScale((modes.Scale + 1) % sequencer.NumScales)
	case "b":
		m.Manager.SetRootKey(modes.RootKey - 1)
	case "n":
		m.Manager.SetRootKey(modes.RootKey + 1)

	case " ":
		m.Manager.Tap(time.Now())
	case "enter":
		m.Manager.Resync(time.Now())
	case "p":
		m.Manager.ToggleClock()
	case "P":
		m.Manager.ContinueClock()
	case "+", "=":
		m.Manager.SetBPM(m.Manager.Snapshot().BPM + 1)
	case "-", "_":
		m.Manager.SetBPM(m.Manager.Snapshot().BPM - 1)

	case "esc":
		m.Manager.Panic()
		m.message = "all notes off"

	case "ctrl+s":
		if m.SettingsPath == "" {
			break
		}
		if err := m.Manager.SaveSettings(m.SettingsPath); err != nil {
			debug.Log("tui", "save settings: %v", err)
			m.message = "save failed: " + err.Error()
		} else {
			m.message = "settings saved"
		}

	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

var helpSections = []widgets.KeySection{
	{Title: "Modes", Keys: []widgets.KeyBinding{
		{Key: "1 2 3", Desc: "play / chord / arp on-off"},
		{Key: "4 5", Desc: "hold-additive / extended-folded"},
		{Key: "m r", Desc: "arp mode / arp rate"},
		{Key: "[ ]", Desc: "duty cycle"},
		{Key: "z x", Desc: "octave down / up"},
		{Key: "c v", Desc: "scale"},
		{Key: "b n", Desc: "root key"},
	}},
	{Title: "Clock", Keys: []widgets.KeyBinding{
		{Key: "space", Desc: "tap tempo (resyncs)"},
		{Key: "enter", Desc: "resync downbeat"},
		{Key: "p", Desc: "start / stop clock"},
		{Key: "P", Desc: "continue clock"},
		{Key: "+ -", Desc: "tempo"},
	}},
	{Keys: []widgets.KeyBinding{
		{Key: "esc", Desc: "panic"},
		{Key: "ctrl+s", Desc: "save settings"},
		{Key: "q", Desc: "quit"},
	}},
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.Manager.Snapshot()
	th := m.Theme
	md := snap.Modes

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())

	clockState := "STOP"
	if snap.Running {
		clockState = "RUN"
	}
	header := headerStyle.Render(fmt.Sprintf("hallkeys  %-8s %s %5.1fbpm", snap.Source, clockState, snap.BPM)) +
		"  " + widgets.RenderBeat(th, snap.Beat, snap.Running)

	play := th.Label(fmt.Sprintf("PLAY %s", md.PlayType), md.PlayActive)
	if snap.AutoHold {
		play += dimStyle.Render(" (auto)")
	}
	chord := th.Label(fmt.Sprintf("CHORD %s", md.ChordType), md.ChordActive)
	arp := th.Label(fmt.Sprintf("ARP %s %s %d%%", md.ArpMode, md.ArpRate, md.DutyCycle), md.ArpActive)
	modeLine := strings.Join([]string{play, chord, arp}, "   ")

	params := dimStyle.Render(fmt.Sprintf("oct %d  scale %s  root %s  policy %s",
		md.Octave, md.Scale, widgets.PitchClass(md.RootKey), snap.Policy))

	arpState := snap.ArpState.String()
	if snap.Waiting {
		arpState = "waiting for downbeat"
	}
	notes := fmt.Sprintf("held  %s\nnotes %s\narp   %s",
		widgets.RenderPitches(snap.Held), widgets.RenderPitches(snap.Sounding), arpState)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(modeLine)
	out.WriteString("\n")
	out.WriteString(params)
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderKeyRow(th, snap.Lights[:], m.keymap))
	out.WriteString("\n\n")
	out.WriteString(notes)
	out.WriteString("\n\n")

	if len(m.devices) > 0 {
		out.WriteString(dimStyle.Render("keyboards: " + strings.Join(m.devices, ", ")))
		out.WriteString("\n")
	}
	if m.message != "" {
		out.WriteString(warnStyle.Render(m.message))
		out.WriteString("\n")
	}
	if m.showHelp {
		out.WriteString(widgets.RenderKeyHelp(helpSections))
	} else {
		out.WriteString(dimStyle.Render("?:help  1/2/3:play/chord/arp  space:tap  esc:panic  q:quit"))
	}

	return out.String()
}
