// Package control holds the commands the outside world may issue to a
// running broadcaster, independent of any transport.
package control

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JeanRibes/groovecast/generation"
	"github.com/JeanRibes/groovecast/music"
	"github.com/JeanRibes/groovecast/shared"

	charmlog "github.com/charmbracelet/log"
)

var (
	ErrBadTempo = errors.New("tempo must be positive")
	ErrStopped  = errors.New("broadcaster stopped")
)

// Submitter forwards parameters to the generation side.
type Submitter interface {
	Submit(ctx context.Context, p generation.Params) error
}

// StatusSource reports the broadcaster state.
type StatusSource interface {
	Status() music.Status
}

type Controller struct {
	submitter Submitter
	status    StatusSource
	pause     *music.Flag
	stop      *music.Latch
	complete  *music.Flag
	tempo     *music.TempoSlot
	logger    *charmlog.Logger
}

func New(submitter Submitter, status StatusSource, signals *music.Signals, tempo *music.TempoSlot, logger *charmlog.Logger) *Controller {
	if logger == nil {
		logger = charmlog.NewWithOptions(os.Stdout, charmlog.Options{Prefix: "ctl"})
	}
	return &Controller{
		submitter: submitter,
		status:    status,
		pause:     signals.Pause,
		stop:      signals.Stop,
		complete:  signals.Complete,
		tempo:     tempo,
		logger:    logger,
	}
}

func (c *Controller) SubmitParameters(ctx context.Context, p generation.Params) error {
	if c.stop.IsSet() {
		return ErrStopped
	}
	p.Normalize()
	c.logger.Info("parameters submitted", "style", p.Style, "tempo", p.Tempo, "loop_measures", p.LoopMeasures)
	return c.submitter.Submit(ctx, p)
}

func (c *Controller) Pause() {
	c.pause.Set()
	c.logger.Info("pause")
}

func (c *Controller) Resume() {
	c.pause.Clear()
	c.logger.Info("resume")
}

// Stop is terminal.
func (c *Controller) Stop() {
	if c.stop.IsSet() {
		return
	}
	c.stop.Set()
	c.logger.Info("stop")
}

func (c *Controller) Stopped() bool { return c.stop.IsSet() }

func (c *Controller) GenerationComplete() bool { return c.complete.IsSet() }

func (c *Controller) AcknowledgeComplete() {
	c.complete.Clear()
	c.logger.Debug("completion acknowledged")
}

// SetTempo takes effect at the start of the next pass.
func (c *Controller) SetTempo(bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("%w: %v", ErrBadTempo, bpm)
	}
	c.tempo.Offer(bpm)
	c.logger.Info("tempo requested", "bpm", bpm)
	return nil
}

func (c *Controller) Status() music.Status {
	if c.status == nil {
		return music.Status{}
	}
	return c.status.Status()
}

// Dispatch runs a message from the action bus.
func (c *Controller) Dispatch(msg shared.Message) error {
	switch msg.Type {
	case shared.Pause:
		c.Pause()
	case shared.Resume:
		c.Resume()
	case shared.Stop:
		c.Stop()
	case shared.Tempo:
		return c.SetTempo(msg.Number)
	case shared.AcknowledgeComplete:
		c.AcknowledgeComplete()
	default:
		c.logger.Warn("unhandled message", "type", msg.Type)
		return fmt.Errorf("%w: %s", shared.ErrUnknownAction, msg.Type)
	}
	return nil
}
