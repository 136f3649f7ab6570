package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"hallkeys/config"
	"hallkeys/debug"
	"hallkeys/midi"
	"hallkeys/sequencer"
	"hallkeys/theme"
	"hallkeys/tui"
)

var flags struct {
	config   string
	palette  string
	serial   string
	baud     int
	port     string
	inSerial string
	inPort   string
	bpm      float64
	channel  int
	debug    bool
	keyboard []string
}

var rootCmd = &cobra.Command{
	Use:   "hallkeys",
	Short: "13-key chord and arpeggiator engine with MIDI clock",
	Long: `hallkeys plays 13 keys from the computer keyboard or a MIDI keyboard
through chord, hold and arpeggiator modes, and keeps a 24 PPQN clock in
step with an external MIDI clock when one is present.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.config, "config", "", "config file (default ~/.config/hallkeys/config.yaml)")
	f.StringVar(&flags.palette, "palette", "", "GIMP palette for the UI")
	f.StringVar(&flags.serial, "serial", "", "output serial device")
	f.IntVar(&flags.baud, "baud", midi.DefaultBaud, "serial baud rate")
	f.StringVar(&flags.port, "port", "", "output MIDI port (substring)")
	f.StringVar(&flags.inSerial, "in-serial", "", "clock input serial device")
	f.StringVar(&flags.inPort, "in-port", "", "clock input MIDI port (substring)")
	f.Float64Var(&flags.bpm, "bpm", 120, "internal tempo")
	f.IntVar(&flags.channel, "channel", 1, "output channel 1-16")
	f.BoolVar(&flags.debug, "debug", false, "log to ~/.config/hallkeys/debug.log")
	f.StringSliceVar(&flags.keyboard, "keyboard", nil, "MIDI keyboard port patterns")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

// loadConfig reads the config file and lets explicitly set flags override it
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.config != "" {
		cfg, err = config.LoadFrom(flags.config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("serial") {
		cfg.Output = config.PortConfig{Serial: flags.serial, Baud: flags.baud}
	}
	if f.Changed("port") {
		cfg.Output = config.PortConfig{Port: flags.port}
	}
	if f.Changed("baud") {
		cfg.Output.Baud = flags.baud
		cfg.Input.Baud = flags.baud
	}
	if f.Changed("in-serial") {
		cfg.Input = config.PortConfig{Serial: flags.inSerial, Baud: flags.baud}
	}
	if f.Changed("in-port") {
		cfg.Input = config.PortConfig{Port: flags.inPort}
	}
	if f.Changed("bpm") {
		cfg.Clock.BPM = flags.bpm
	}
	if f.Changed("channel") {
		cfg.Channel = flags.channel
	}
	if f.Changed("keyboard") {
		cfg.Keyboard.Patterns = flags.keyboard
	}
	if flags.debug {
		cfg.Debug = true
	}
	return cfg, cfg.Validate()
}

func run(cfg *config.Config) error {
	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			return fmt.Errorf("debug log: %w", err)
		}
		defer debug.Disable()
	}

	palette := theme.Default()
	if flags.palette != "" {
		p, err := theme.LoadGPL(flags.palette)
		if err != nil {
			return err
		}
		palette = p
	}
	th := theme.New(palette)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send, outSerial, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	if outSerial != nil {
		defer outSerial.Close()
	}

	settingsPath, err := sequencer.SettingsPath()
	if err != nil {
		debug.Log("main", "no settings path: %v", err)
	}
	modes := sequencer.DefaultModes()
	if settingsPath != "" {
		modes = sequencer.LoadSettingsFile(settingsPath, modes)
	}

	manager := sequencer.NewManager(send, modes, sequencer.Options{
		Channel:          cfg.OutputChannel(),
		Velocity:         uint8(cfg.Velocity),
		BPM:              cfg.Clock.BPM,
		ClockOut:         cfg.Clock.Out,
		StopClockWithArp: cfg.Clock.StopWithArp,
		ClockThru:        cfg.Clock.Thru,
	})

	if err := openInput(ctx, cfg, outSerial, manager); err != nil {
		return err
	}

	var deviceMgr *midi.DeviceManager
	if len(cfg.Keyboard.Patterns) > 0 {
		deviceMgr = midi.NewDeviceManager(cfg.Keyboard.Patterns, cfg.Keyboard.BaseNote)
		go deviceMgr.Run(ctx)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.Run(ctx)
	}()

	m := tui.NewModel(manager, deviceMgr, th, cfg.Keymap)
	m.SettingsPath = settingsPath
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, runErr := p.Run()

	// Run silences every note and stops the clock before returning
	cancel()
	wg.Wait()

	if settingsPath != "" {
		if err := manager.SaveSettings(settingsPath); err != nil {
			fmt.Fprintf(os.Stderr, "save settings: %v\n", err)
		}
	}
	return runErr
}

// openOutput opens the configured transport; with none configured it
// publishes a virtual port instead
func openOutput(pc config.PortConfig) (midi.Sender, *midi.SerialPort, error) {
	switch {
	case pc.IsSerial():
		sp, err := midi.OpenSerial(pc.Serial, pc.Baud)
		if err != nil {
			return nil, nil, err
		}
		return sp.Send, sp, nil
	case pc.Port != "":
		send, name, err := midi.OpenPortSender(pc.Port)
		if err != nil {
			return nil, nil, err
		}
		debug.Log("main", "output %s", name)
		return send, nil, nil
	}

	send, err := midi.OpenVirtualSender("hallkeys")
	if err != nil {
		fmt.Fprintf(os.Stderr, "no output: %v\n", err)
		return midi.Discard, nil, nil
	}
	return send, nil, nil
}

// openInput starts the clock input reader. A serial input on the same device
// as the output shares the open port.
func openInput(ctx context.Context, cfg *config.Config, outSerial *midi.SerialPort, manager *sequencer.Manager) error {
	in := cfg.Input
	switch {
	case in.IsSerial():
		sp := outSerial
		if sp == nil || cfg.Output.Serial != in.Serial {
			var err error
			sp, err = midi.OpenSerial(in.Serial, in.Baud)
			if err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				sp.Close()
			}()
		}
		go func() {
			if err := sp.ReadRealtime(ctx, manager.RealtimeInput()); err != nil && ctx.Err() == nil {
				debug.Log("main", "clock input: %v", err)
			}
		}()
	case in.Port != "":
		port, err := midi.FindInPort(in.Port)
		if err != nil {
			return err
		}
		kb, err := midi.NewKeyboardController(port.String(), port, cfg.Keyboard.BaseNote)
		if err != nil {
			return err
		}
		manager.Attach(kb)
		go func() {
			<-ctx.Done()
			kb.Close()
		}()
	}
	return nil
}
