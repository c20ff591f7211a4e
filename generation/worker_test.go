package generation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/JeanRibes/groovecast/music"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	groove *music.Groove
	err    error
	got    chan Params
}

func (s *stubGenerator) Generate(_ context.Context, p Params) (*music.Groove, error) {
	if s.got != nil {
		s.got <- p
	}
	return s.groove, s.err
}

func newTestWorker(gen Generator, capacity int) (*Worker, *music.GrooveChannel, *music.Signals) {
	sig := music.NewSignals()
	ch := music.NewGrooveChannel(capacity)
	return NewWorker(gen, ch, sig.Ready, sig.Complete, charmlog.New(io.Discard)), ch, sig
}

func goodGroove() *music.Groove {
	return music.NewGroove([]music.Event{{Kind: music.NoteOn, Pitch: 60, Velocity: 90, Instrument: "drum"}}, 500_000, 480)
}

func runWorker(t *testing.T, w *Worker) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestWorkerPublishesGroove(t *testing.T) {
	g := goodGroove()
	gen := &stubGenerator{groove: g, got: make(chan Params, 1)}
	w, ch, sig := newTestWorker(gen, 2)
	cancel, done := runWorker(t, w)

	require.NoError(t, w.Submit(context.Background(), Params{Style: "jazz"}))
	assert.Equal(t, "jazz", (<-gen.got).Style)

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, sig.Complete.Wait(ctx))
	assert.True(t, sig.Ready.IsSet())
	got, ok := ch.TryTake()
	require.True(t, ok)
	assert.Same(t, g, got)
	assert.Equal(t, int64(1), w.Produced())

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWorkerFailuresLeaveSignalsDown(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"generator error", &stubGenerator{err: errors.New("model offline")}},
		{"malformed groove", &stubGenerator{groove: music.NewGroove(nil, 500_000, 480)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, ch, sig := newTestWorker(tt.gen, 2)
			w.handle(context.Background(), DefaultParams())

			assert.Equal(t, int64(1), w.Failed())
			assert.Zero(t, ch.Len())
			assert.False(t, sig.Ready.IsSet())
			assert.False(t, sig.Complete.IsSet())
		})
	}
}

func TestWorkerStopsWhileBlockedOnFullChannel(t *testing.T) {
	w, ch, sig := newTestWorker(&stubGenerator{groove: goodGroove()}, 1)
	require.NoError(t, ch.Put(context.Background(), goodGroove()))
	cancel, done := runWorker(t, w)

	require.NoError(t, w.Submit(context.Background(), DefaultParams()))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, sig.Ready.IsSet())

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "worker did not stop")
	}
	assert.Equal(t, 1, ch.Len())
}
