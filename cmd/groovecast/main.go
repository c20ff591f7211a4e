package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/JeanRibes/groovecast/config"
	"github.com/JeanRibes/groovecast/control"
	"github.com/JeanRibes/groovecast/generation"
	"github.com/JeanRibes/groovecast/music"
	"github.com/JeanRibes/groovecast/web"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

func main() {
	configFile := flag.String("config", "config.yaml", "config file")
	outPort := flag.String("output", "", "MIDI output port name")
	virtual := flag.Bool("virtual", true, "open a virtual output port instead of looking one up")
	serialDev := flag.String("serial", "", "serial device for a hardware MIDI out, e.g. /dev/ttyUSB0")
	addr := flag.String("addr", "", "control plane listen address")
	library := flag.String("library", "", "directory of MIDI grooves, one sub-directory per style")
	loops := flag.Int("loops", 0, "loops of the current groove before a queued one may replace it")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	autostart := flag.Bool("autostart", false, "request a groove with default parameters at startup")

	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Port = *outPort
		case "virtual":
			cfg.Output.Virtual = *virtual
		case "serial":
			cfg.Output.Serial = *serialDev
		case "addr":
			cfg.HTTP.Addr = *addr
		case "library":
			cfg.Library.Dir = *library
		case "loops":
			cfg.DesiredLoops = *loops
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})

	level, err := charmlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = charmlog.InfoLevel
	}
	logger := charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		Level:           level,
		ReportCaller:    cfg.Log.Caller,
		ReportTimestamp: true,
	})

	defer midi.CloseDriver()
	out, err := cfg.Output.Open()
	if err != nil {
		logger.Fatal("cannot open output", "err", err)
	}
	logger.Info("output", "port", out.String())

	signals := music.NewSignals()
	grooves := music.NewGrooveChannel(cfg.Capacity)
	tempo := &music.TempoSlot{}

	broadcaster := music.NewBroadcaster(music.Options{
		Channel:      grooves,
		Pause:        signals.Pause,
		Stop:         signals.Stop,
		Ready:        signals.Ready,
		Tempo:        tempo,
		Output:       out,
		Channels:     cfg.Channels,
		Enabled:      cfg.Enabled,
		DesiredLoops: cfg.DesiredLoops,
		Granularity:  cfg.Granularity,
		Logger:       logger.WithPrefix("loop"),
	})
	worker := generation.NewWorker(
		generation.NewLibrary(cfg.Library.Dir, cfg.Library.Seed),
		grooves, signals.Ready, signals.Complete,
		logger.WithPrefix("gen"),
	)
	ctl := control.New(worker, broadcaster, signals, tempo, logger.WithPrefix("ctl"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	genCtx, stopGeneration := context.WithCancel(ctx)
	go worker.Run(genCtx)

	srv := web.New(ctl, stopGeneration, logger.WithPrefix("http"))
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.HTTP.Addr); err != nil {
			logger.Error("control plane", "err", err)
			ctl.Stop()
		}
	}()

	go func() {
		signalCh := make(chan os.Signal, 1)
		signal.Notify(signalCh, os.Interrupt)
		<-signalCh
		logger.Info("interrupt")
		ctl.Stop()
	}()

	if *autostart {
		if err := ctl.SubmitParameters(ctx, generation.DefaultParams()); err != nil {
			logger.Error("autostart", "err", err)
		}
	}

	if err := broadcaster.Run(ctx); err != nil {
		logger.Error("broadcaster", "err", err)
	}
}
