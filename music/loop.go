package music

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"
)

const DefaultGranularity = 5 * time.Millisecond

type Options struct {
	Channel *GrooveChannel
	Pause   *Flag
	Stop    *Latch
	Ready   *Flag
	Tempo   *TempoSlot
	Output  Output

	// Channels maps instruments to MIDI channels, Enabled switches them on
	// or off until a groove brings its own settings.
	Channels     map[string]uint8
	Enabled      map[string]bool
	DesiredLoops int

	Clock Clock
	// Granularity bounds every sleep, and so the latency of stop.
	Granularity time.Duration
	Logger      *charmlog.Logger
}

// Broadcaster plays grooves from a GrooveChannel on an Output, looping the
// active groove until a queued one may replace it.
type Broadcaster struct {
	ch          *GrooveChannel
	pause       *Flag
	stop        *Latch
	ready       *Flag
	tempo       *TempoSlot
	out         Output
	channels    map[string]uint8
	clock       Clock
	granularity time.Duration
	logger      *charmlog.Logger

	state  loopState
	board  statusBoard
	sent   atomic.Uint64
	failed atomic.Uint64
}

func NewBroadcaster(opts Options) *Broadcaster {
	b := &Broadcaster{
		ch:          opts.Channel,
		pause:       opts.Pause,
		stop:        opts.Stop,
		ready:       opts.Ready,
		tempo:       opts.Tempo,
		out:         opts.Output,
		channels:    opts.Channels,
		clock:       opts.Clock,
		granularity: opts.Granularity,
		logger:      opts.Logger,
	}
	if b.ch == nil {
		b.ch = NewGrooveChannel(DefaultCapacity)
	}
	if b.pause == nil {
		b.pause = NewFlag()
	}
	if b.stop == nil {
		b.stop = NewLatch()
	}
	if b.ready == nil {
		b.ready = NewFlag()
	}
	if b.tempo == nil {
		b.tempo = &TempoSlot{}
	}
	if b.channels == nil {
		b.channels = DefaultChannels
	}
	if b.clock == nil {
		b.clock = NewClock()
	}
	if b.granularity <= 0 {
		b.granularity = DefaultGranularity
	}
	if b.logger == nil {
		b.logger = charmlog.NewWithOptions(os.Stdout, charmlog.Options{Prefix: "loop"})
	}
	b.state.desiredLoops = max(opts.DesiredLoops, 0)
	b.state.router = NewRouter(b.channels, opts.Enabled)
	b.board.status.Phase = AwaitingFirstGroove.String()
	return b
}

func (b *Broadcaster) Status() Status {
	s := b.board.snapshot()
	s.Sent = b.sent.Load()
	s.Failed = b.failed.Load()
	return s
}

// Run blocks until stop is set or ctx ends. It returns nil on stop and the
// context error otherwise. The output is closed on every return path.
func (b *Broadcaster) Run(ctx context.Context) (err error) {
	b.logger.Info("start", "output", b.out.String(), "capacity", b.ch.Cap())
	defer func() {
		b.state.phase = Stopped
		b.board.setPhase(Stopped)
		if cerr := b.out.Close(); cerr != nil {
			b.logger.Error("closing output", "err", cerr)
			err = errors.Join(err, cerr)
		}
		b.logger.Info("stop", "sent", b.sent.Load(), "failed", b.failed.Load())
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.stop.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	first, err := b.ch.Take(runCtx)
	if err != nil {
		return b.exitErr(ctx)
	}
	b.adopt(first)
	b.settleReady()
	b.state.phase = Playing
	b.state.reference = b.clock.Now()
	b.logger.Info("playing", "groove", first.ID(), "events", first.Len())

	for !b.done(runCtx) {
		b.retime()
		b.checkTransition()
		b.checkSwap()
		b.board.publish(&b.state, b.pause.IsSet(), b.ch.Len())

		start := b.state.passStart()
		if !b.waitUntil(runCtx, start) {
			break
		}
		if !b.play(runCtx, start) {
			break
		}
		b.state.loops++
		b.state.passes++
		b.logger.Debug("looped", "groove", b.state.active.ID(), "loops", b.state.loops)
	}
	return b.exitErr(ctx)
}

func (b *Broadcaster) exitErr(ctx context.Context) error {
	if b.stop.IsSet() {
		return nil
	}
	return ctx.Err()
}

func (b *Broadcaster) done(ctx context.Context) bool {
	return b.stop.IsSet() || ctx.Err() != nil
}

// adopt makes g the active groove and applies the settings it carries.
func (b *Broadcaster) adopt(g *Groove) {
	s := g.Settings()
	if s.Enabled != nil {
		b.state.router = NewRouter(b.channels, s.Enabled)
	}
	if s.DesiredLoops != nil {
		b.state.desiredLoops = max(*s.DesiredLoops, 0)
	}
	b.state.active = g
	b.state.override = 0
}

// settleReady drops the ready signal raised for the groove just taken, so
// it cannot trigger a transition once the next groove is put. A groove that
// arrived meanwhile keeps it raised.
func (b *Broadcaster) settleReady() {
	if b.ch.Len() > 0 {
		return
	}
	b.ready.Clear()
	if b.ch.Len() > 0 {
		b.ready.Set()
	}
}

// retime resolves the tempo for the coming pass. Overrides only land here,
// so a pass is always played at one tempo.
func (b *Broadcaster) retime() {
	if bpm, ok := b.tempo.Poll(); ok {
		b.state.override = bpm
	}
	bpm := b.state.active.BPM()
	if b.state.override > 0 {
		bpm = b.state.override
	}
	if bpm != b.state.bpm {
		b.logger.Info("tempo", "bpm", bpm)
	}
	b.state.bpm = bpm
	if d := b.state.active.Duration(bpm); d != b.state.duration {
		b.state.rebase()
		b.state.duration = d
	}
}

func (b *Broadcaster) checkTransition() {
	if !b.ready.IsSet() || b.ch.Len() == 0 {
		return
	}
	b.state.queued = true
	b.ready.Clear()
	b.state.loops = 0
	b.logger.Info("new groove queued", "desired_loops", b.state.desiredLoops)
}

func (b *Broadcaster) checkSwap() {
	if !b.state.queued || b.state.loops < b.state.desiredLoops {
		return
	}
	g, ok := b.ch.TryTake()
	if !ok {
		b.logger.Warn("no groove to swap in, keep looping", "groove", b.state.active.ID())
		return
	}
	b.adopt(g)
	b.state.queued = false
	b.state.loops = 0
	b.state.swaps++
	b.retime()
	b.logger.Info("switched groove", "groove", g.ID(), "events", g.Len(), "bpm", b.state.bpm)
}

// play walks the active groove once. It reports false when stopped.
func (b *Broadcaster) play(ctx context.Context, start time.Duration) bool {
	g := b.state.active
	router := b.state.router
	for i := 0; i < g.Len(); i++ {
		if !b.awaitResume(ctx, &start) {
			return false
		}
		ev := g.Event(i)
		if err := b.out.Send(router.Message(ev)); err != nil {
			b.failed.Add(1)
			b.logger.Warn("send failed, skipping event", "index", i, "instrument", ev.Instrument, "err", err)
		} else {
			b.sent.Add(1)
			b.logger.Debug(ev.Kind.String(), "key", ev.Pitch, "vel", ev.Velocity, "instrument", ev.Instrument, "tick", g.AbsTick(i))
		}
		if b.done(ctx) {
			return false
		}
		if i == g.Len()-1 {
			break
		}
		if !b.waitUntil(ctx, start+g.Offset(i+1, b.state.bpm)) {
			return false
		}
	}
	return true
}

// awaitResume blocks while paused. The time spent paused pushes the
// timeline back so playback resumes where it stopped.
func (b *Broadcaster) awaitResume(ctx context.Context, start *time.Duration) bool {
	if !b.pause.IsSet() {
		return !b.done(ctx)
	}
	pausedAt := b.clock.Now()
	b.board.setPaused(true)
	b.logger.Info("paused")
	for b.pause.IsSet() {
		select {
		case <-b.pause.Lowered():
		case <-ctx.Done():
			return false
		}
	}
	b.board.setPaused(false)
	if b.done(ctx) {
		return false
	}
	shift := b.clock.Now() - pausedAt
	b.state.reference += shift
	*start += shift
	b.logger.Info("resumed", "after", shift)
	return true
}

// waitUntil sleeps in steps of at most granularity until the clock reaches
// deadline. It reports false when stopped first.
func (b *Broadcaster) waitUntil(ctx context.Context, deadline time.Duration) bool {
	for {
		if b.done(ctx) {
			return false
		}
		rem := deadline - b.clock.Now()
		if rem <= 0 {
			return true
		}
		b.clock.Sleep(min(rem, b.granularity))
	}
}
