package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"hallkeys/clock"
	"hallkeys/midi"
)

var (
	serialName string
	baud       int
	portName   string
)

var rootCmd = &cobra.Command{
	Use:   "miditest",
	Short: "MIDI and clock diagnostics for hallkeys",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serialName, "serial", "", "serial device, e.g. /dev/ttyUSB0")
	rootCmd.PersistentFlags().IntVar(&baud, "baud", midi.DefaultBaud, "serial baud rate")
	rootCmd.PersistentFlags().StringVar(&portName, "port", "", "MIDI port name (substring)")

	rootCmd.AddCommand(listCmd, monitorCmd, clockCmd, pollCmd)
	clockCmd.Flags().Float64("bpm", clock.DefaultBPM, "tempo")
	clockCmd.Flags().Int("beats", 8, "beats to send before Stop")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List MIDI and serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("=== MIDI Input Ports ===")
		fmt.Println("(waiting up to 3 seconds...)")

		type result struct {
			ins  []drivers.In
			outs []drivers.Out
		}
		ch := make(chan result, 1)
		go func() {
			ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
		}()

		select {
		case r := <-ch:
			for i, p := range r.ins {
				fmt.Printf("  %d: %s\n", i, p.String())
			}
			fmt.Println("\n=== MIDI Output Ports ===")
			for i, p := range r.outs {
				fmt.Printf("  %d: %s\n", i, p.String())
			}
		case <-time.After(3 * time.Second):
			fmt.Println("\nTIMEOUT! MIDI port enumeration is hung.")
		}

		fmt.Println("\n=== Serial Ports ===")
		ports, err := midi.SerialPorts()
		if err != nil {
			return fmt.Errorf("list serial ports: %w", err)
		}
		for _, p := range ports {
			fmt.Printf("  %s\n", p)
		}
		return nil
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print realtime bytes and the measured tempo of an external clock",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		events := make(chan midi.RealtimeEvent, 512)
		switch {
		case serialName != "":
			sp, err := midi.OpenSerial(serialName, baud)
			if err != nil {
				return err
			}
			defer sp.Close()
			go sp.ReadRealtime(ctx, events)
		case portName != "":
			in, err := midi.FindInPort(portName)
			if err != nil {
				return err
			}
			kb, err := midi.NewKeyboardController(in.String(), in, 0)
			if err != nil {
				return err
			}
			defer kb.Close()
			go func() {
				for ev := range kb.Realtime() {
					events <- ev
				}
			}()
		default:
			return fmt.Errorf("need --serial or --port")
		}

		// The arbiter measures tempo and tracks the phase exactly like the engine does
		arb := clock.NewArbiter(midi.Discard, clock.DefaultBPM, time.Now())
		fmt.Println("Listening. Ctrl+C to exit.")
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		wasExternal := false
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				if ev.Byte != midi.Clock {
					fmt.Printf("[%s] %s\n", ev.At.Format("15:04:05.000"), realtimeName(ev.Byte))
				}
				arb.Feed(ev.Byte, ev.At)
			case now := <-ticker.C:
				arb.Poll(now)
				ext := arb.External()
				if ext {
					v := arb.View(now)
					fmt.Printf("external clock %5.1f bpm  beat %d  pulse %02d\n", arb.BPM(), v.Pulse()/clock.PPQN+1, v.Pulse())
				} else if wasExternal {
					fmt.Println("external clock lost")
				}
				wasExternal = ext
			}
		}
	},
}

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Send Start, a few beats of timing clock, then Stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		bpm, _ := cmd.Flags().GetFloat64("bpm")
		beats, _ := cmd.Flags().GetInt("beats")
		if bpm < clock.MinBPM || bpm > clock.MaxBPM {
			return fmt.Errorf("bpm %g out of range", bpm)
		}

		send, closeFn, err := openOutput()
		if err != nil {
			return err
		}
		defer closeFn()

		arb := clock.NewArbiter(midi.Sync(send), bpm, time.Now())
		gen := arb.Generator()
		phase := arb.Phase()

		start := time.Now()
		arb.Start(start)
		total := beats * clock.PPQN
		for phase.Ticks() < uint64(total) {
			time.Sleep(gen.Interval() / 4)
			gen.Poll(time.Now())
		}
		arb.Stop()

		elapsed := time.Since(start)
		fmt.Printf("sent %d pulses in %v (expected %v)\n", phase.Ticks(), elapsed.Round(time.Millisecond),
			(time.Duration(total) * gen.Interval()).Round(time.Millisecond))
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Watch for MIDI keyboards matching a pattern",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		dm := midi.NewDeviceManager(args, 48)
		go dm.Run(ctx)
		fmt.Printf("Watching for %s. Ctrl+C to exit.\n", strings.Join(args, ", "))
		for ev := range dm.Events() {
			switch ev.Type {
			case midi.DeviceConnected:
				fmt.Printf("[%s] connected %s\n", time.Now().Format("15:04:05"), ev.ID)
			case midi.DeviceDisconnected:
				fmt.Printf("[%s] disconnected %s\n", time.Now().Format("15:04:05"), ev.ID)
			}
		}
		return nil
	},
}

func openOutput() (midi.Sender, func(), error) {
	switch {
	case serialName != "":
		sp, err := midi.OpenSerial(serialName, baud)
		if err != nil {
			return nil, nil, err
		}
		return sp.Send, func() { sp.Close() }, nil
	case portName != "":
		send, name, err := midi.OpenPortSender(portName)
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("Using output: %s\n", name)
		return send, func() {}, nil
	}
	return nil, nil, fmt.Errorf("need --serial or --port")
}

func realtimeName(b uint8) string {
	switch b {
	case midi.Start:
		return "Start"
	case midi.Continue:
		return "Continue"
	case midi.Stop:
		return "Stop"
	}
	return fmt.Sprintf("0x%02X", b)
}
