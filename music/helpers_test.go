package music

import (
	"context"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
)

// fakeClock advances only when slept on.
type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
	runtime.Gosched()
}

type sentMessage struct {
	msg midi.Message
	at  time.Duration
	err error
}

// recorder is an Output that keeps every attempted message with the clock
// reading at the time of the attempt.
type recorder struct {
	mu     sync.Mutex
	clock  Clock
	sent   []sentMessage
	closed int

	// onSend runs on the broadcaster goroutine after the n-th attempt.
	onSend func(n int, msg midi.Message)
	fail   func(n int) error
}

func (r *recorder) Send(msg midi.Message) error {
	r.mu.Lock()
	n := len(r.sent) + 1
	var err error
	if r.fail != nil {
		err = r.fail(n)
	}
	r.sent = append(r.sent, sentMessage{msg: msg, at: r.clock.Now(), err: err})
	hook := r.onSend
	r.mu.Unlock()
	if hook != nil {
		hook(n, msg)
	}
	return err
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *recorder) String() string { return "recorder" }

func (r *recorder) messages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recorder) closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func pitches(msgs []sentMessage) []uint8 {
	out := make([]uint8, len(msgs))
	for i, m := range msgs {
		out[i] = m.msg[1]
	}
	return out
}

const (
	testTPB   = 500
	testTempo = 500_000 // 120 bpm, one tick per millisecond
)

// testGroove builds a drum groove with one note on per pitch, spaced by the
// given deltas, looping every length ticks.
func testGroove(length uint32, deltas []uint32, pitches []uint8, opts ...GrooveOption) *Groove {
	events := make([]Event, len(pitches))
	for i, p := range pitches {
		events[i] = Event{Delta: deltas[i], Kind: NoteOn, Pitch: p, Velocity: 100, Instrument: "drum"}
	}
	opts = append([]GrooveOption{WithLength(length)}, opts...)
	return NewGroove(events, testTempo, testTPB, opts...)
}

type harness struct {
	b       *Broadcaster
	ch      *GrooveChannel
	signals *Signals
	tempo   *TempoSlot
	clock   *fakeClock
	out     *recorder
}

func newHarness(capacity, desiredLoops int) *harness {
	h := &harness{
		ch:      NewGrooveChannel(capacity),
		signals: NewSignals(),
		tempo:   &TempoSlot{},
		clock:   &fakeClock{},
	}
	h.out = &recorder{clock: h.clock}
	h.b = NewBroadcaster(Options{
		Channel:      h.ch,
		Pause:        h.signals.Pause,
		Stop:         h.signals.Stop,
		Ready:        h.signals.Ready,
		Tempo:        h.tempo,
		Output:       h.out,
		DesiredLoops: desiredLoops,
		Clock:        h.clock,
		Logger:       charmlog.New(io.Discard),
	})
	return h
}

// stopAt stops the broadcaster from inside the n-th send.
func (h *harness) stopAt(n int) {
	h.out.onSend = func(i int, _ midi.Message) {
		if i == n {
			h.signals.Stop.Set()
		}
	}
}

func (h *harness) start(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.b.Run(ctx) }()
	return errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		require.FailNow(t, "broadcaster did not return")
		return nil
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
