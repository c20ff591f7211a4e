package generation

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/JeanRibes/groovecast/music"

	charmlog "github.com/charmbracelet/log"
)

const requestBacklog = 16

// Worker runs the generator on its own goroutine so slow generation never
// holds up playback. Each finished groove is put on the channel, then Ready
// and Complete are raised.
type Worker struct {
	gen      Generator
	ch       *music.GrooveChannel
	ready    *music.Flag
	complete *music.Flag
	requests chan Params
	logger   *charmlog.Logger

	produced atomic.Int64
	failed   atomic.Int64
}

func NewWorker(gen Generator, ch *music.GrooveChannel, ready, complete *music.Flag, logger *charmlog.Logger) *Worker {
	if logger == nil {
		logger = charmlog.NewWithOptions(os.Stdout, charmlog.Options{Prefix: "gen"})
	}
	return &Worker{
		gen:      gen,
		ch:       ch,
		ready:    ready,
		complete: complete,
		requests: make(chan Params, requestBacklog),
		logger:   logger,
	}
}

func (w *Worker) Submit(ctx context.Context, p Params) error {
	select {
	case w.requests <- p:
		w.logger.Debug("request queued", "style", p.Style, "tempo", p.Tempo, "backlog", len(w.requests))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("start")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stop", "produced", w.produced.Load(), "failed", w.failed.Load())
			return ctx.Err()
		case p := <-w.requests:
			w.handle(ctx, p)
		}
	}
}

func (w *Worker) handle(ctx context.Context, p Params) {
	started := time.Now()
	g, err := w.gen.Generate(ctx, p)
	if err != nil {
		w.failed.Add(1)
		w.logger.Error("generation failed", "err", err)
		return
	}
	// blocks while the channel is full
	if err := w.ch.Put(ctx, g); err != nil {
		w.failed.Add(1)
		if errors.Is(err, music.ErrMalformedGroove) {
			w.logger.Error("groove rejected", "err", err)
		} else {
			w.logger.Warn("groove dropped", "err", err)
		}
		return
	}
	w.produced.Add(1)
	w.ready.Set()
	w.complete.Set()
	w.logger.Info("generation complete", "groove", g.ID(), "events", g.Len(), "took", time.Since(started))
}

func (w *Worker) Produced() int64 { return w.produced.Load() }

func (w *Worker) Failed() int64 { return w.failed.Load() }
