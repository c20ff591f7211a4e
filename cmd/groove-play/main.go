// groove-play queues MIDI files on a broadcaster, without the web front end
// or a generator. A MIDI controller can pause and stop playback.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/JeanRibes/groovecast/config"
	"github.com/JeanRibes/groovecast/control"
	"github.com/JeanRibes/groovecast/music"
	"github.com/JeanRibes/groovecast/shared"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
	"gitlab.com/gomidi/midi/v2/smf"
	"go.bug.st/serial"
)

func main() {
	configFile := flag.String("config", "config.yaml", "config file")
	inPort := flag.String("input", "", "MIDI controller input port name")
	outPort := flag.String("output", "", "MIDI output port name")
	loops := flag.Int("loops", 2, "loops of each file before the next one")
	quantize := flag.Bool("quantize", false, "quantize files before playing them")
	bpm := flag.Float64("tempo", 0, "play at this tempo instead of the files' own")
	list := flag.Bool("list", false, "list MIDI and serial ports, then exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.mid...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *list {
		listPorts()
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *outPort != "" {
		cfg.Output.Port = *outPort
		cfg.Output.Virtual = false
	}
	level, err := charmlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = charmlog.InfoLevel
	}
	logger := charmlog.NewWithOptions(os.Stdout, charmlog.Options{Level: level, ReportTimestamp: true})

	grooves := make([]*music.Groove, 0, flag.NArg())
	for _, path := range flag.Args() {
		g, err := load(path, *quantize, *bpm, *loops)
		if err != nil {
			logger.Fatal("cannot load groove", "file", path, "err", err)
		}
		logger.Info("loaded", "file", path, "groove", g)
		grooves = append(grooves, g)
	}

	defer midi.CloseDriver()
	out, err := cfg.Output.Open()
	if err != nil {
		logger.Fatal("cannot open output", "err", err)
	}
	logger.Info("output", "port", out.String())

	signals := music.NewSignals()
	ch := music.NewGrooveChannel(cfg.Capacity)
	tempo := &music.TempoSlot{}
	broadcaster := music.NewBroadcaster(music.Options{
		Channel:      ch,
		Pause:        signals.Pause,
		Stop:         signals.Stop,
		Ready:        signals.Ready,
		Tempo:        tempo,
		Output:       out,
		Channels:     cfg.Channels,
		Enabled:      cfg.Enabled,
		DesiredLoops: *loops,
		Granularity:  cfg.Granularity,
		Logger:       logger.WithPrefix("loop"),
	})
	ctl := control.New(nil, broadcaster, signals, tempo, logger.WithPrefix("ctl"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *inPort != "" {
		stopListening, err := listen(*inPort, cfg.Controllers, ctl, logger.WithPrefix("input"))
		if err != nil {
			logger.Error("controller disabled", "err", err)
		} else {
			defer stopListening()
		}
	}

	go func() {
		if err := ch.Feed(ctx, signals.Ready, grooves...); err != nil {
			logger.Warn("queue", "err", err)
			return
		}
		logger.Info("all files queued", "files", len(grooves))
	}()

	go func() {
		signalCh := make(chan os.Signal, 1)
		signal.Notify(signalCh, os.Interrupt)
		<-signalCh
		logger.Info("interrupt")
		ctl.Stop()
	}()

	if err := broadcaster.Run(ctx); err != nil {
		logger.Error("broadcaster", "err", err)
	}
}

func load(path string, quantize bool, bpm float64, loops int) (*music.Groove, error) {
	f, err := smf.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if quantize {
		if f, err = music.Quantize(f); err != nil {
			return nil, err
		}
	}
	opts := []music.GrooveOption{music.WithSettings(music.Settings{DesiredLoops: music.Loops(loops)})}
	if bpm > 0 {
		opts = append(opts, music.WithTempo(music.TempoMicros(bpm)))
	}
	g, err := music.FromSMF(f, opts...)
	if err != nil {
		return nil, err
	}
	return g, g.Validate()
}

// listen turns control changes from a pedal or pad into commands: the pause
// controller holds playback while pressed, the stop controller ends it.
func listen(port string, controllers map[string]uint8, ctl *control.Controller, logger *charmlog.Logger) (func(), error) {
	in, err := midi.FindInPort(port)
	if err != nil {
		return nil, fmt.Errorf("can't find input %q: %w", port, err)
	}
	pauseCC, hasPause := controllers["pause"]
	stopCC, hasStop := controllers["stop"]
	return midi.ListenTo(in, func(msg midi.Message, _ int32) {
		var ch, cc, val uint8
		if !msg.GetControlChange(&ch, &cc, &val) {
			return
		}
		logger.Debug("control change", "channel", ch, "cc", cc, "value", val)
		var m shared.Message
		switch {
		case hasPause && cc == pauseCC && val >= 64:
			m.Type = shared.Pause
		case hasPause && cc == pauseCC:
			m.Type = shared.Resume
		case hasStop && cc == stopCC && val >= 64:
			m.Type = shared.Stop
		default:
			return
		}
		if err := ctl.Dispatch(m); err != nil {
			logger.Warn("dispatch", "err", err)
		}
	})
}

func listPorts() {
	defer midi.CloseDriver()
	fmt.Print("MIDI outputs:\n", midi.GetOutPorts().String())
	fmt.Print("MIDI inputs:\n", midi.GetInPorts().String())
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Fprintln(os.Stderr, "serial:", err)
		return
	}
	fmt.Println("serial ports:")
	for _, port := range ports {
		fmt.Println(port)
	}
}
