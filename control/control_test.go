package control

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/JeanRibes/groovecast/generation"
	"github.com/JeanRibes/groovecast/music"
	"github.com/JeanRibes/groovecast/shared"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	params []generation.Params
	err    error
}

func (r *recordingSubmitter) Submit(_ context.Context, p generation.Params) error {
	r.params = append(r.params, p)
	return r.err
}

type fixedStatus music.Status

func (f fixedStatus) Status() music.Status { return music.Status(f) }

func newTestController(sub Submitter) (*Controller, *music.Signals, *music.TempoSlot) {
	sig := music.NewSignals()
	tempo := &music.TempoSlot{}
	status := fixedStatus{Phase: music.Playing.String(), Loops: 3}
	return New(sub, status, sig, tempo, charmlog.New(io.Discard)), sig, tempo
}

func TestPauseResume(t *testing.T) {
	c, sig, _ := newTestController(&recordingSubmitter{})
	c.Pause()
	assert.True(t, sig.Pause.IsSet())
	c.Resume()
	assert.False(t, sig.Pause.IsSet())
}

func TestStopIsTerminal(t *testing.T) {
	sub := &recordingSubmitter{}
	c, sig, _ := newTestController(sub)
	c.Stop()
	c.Stop()
	assert.True(t, sig.Stop.IsSet())
	assert.True(t, c.Stopped())

	err := c.SubmitParameters(context.Background(), generation.Params{})
	require.ErrorIs(t, err, ErrStopped)
	assert.Empty(t, sub.params)
}

func TestSubmitParametersNormalizes(t *testing.T) {
	sub := &recordingSubmitter{}
	c, _, _ := newTestController(sub)
	require.NoError(t, c.SubmitParameters(context.Background(), generation.Params{Style: "jazz"}))
	require.Len(t, sub.params, 1)
	assert.Equal(t, "jazz", sub.params[0].Style)
	assert.Equal(t, 120, sub.params[0].Tempo)

	sub.err = errors.New("backlog full")
	assert.ErrorIs(t, c.SubmitParameters(context.Background(), generation.Params{}), sub.err)
}

func TestCompletionHandshake(t *testing.T) {
	c, sig, _ := newTestController(&recordingSubmitter{})
	assert.False(t, c.GenerationComplete())
	sig.Complete.Set()
	assert.True(t, c.GenerationComplete())
	c.AcknowledgeComplete()
	assert.False(t, c.GenerationComplete())
	assert.False(t, sig.Ready.IsSet())
}

func TestSetTempo(t *testing.T) {
	c, _, tempo := newTestController(&recordingSubmitter{})
	require.ErrorIs(t, c.SetTempo(0), ErrBadTempo)
	require.ErrorIs(t, c.SetTempo(-3), ErrBadTempo)
	_, ok := tempo.Poll()
	assert.False(t, ok)

	require.NoError(t, c.SetTempo(90))
	bpm, ok := tempo.Poll()
	require.True(t, ok)
	assert.Equal(t, float64(90), bpm)
}

func TestDispatch(t *testing.T) {
	c, sig, tempo := newTestController(&recordingSubmitter{})

	require.NoError(t, c.Dispatch(shared.Message{Type: shared.Pause}))
	assert.True(t, sig.Pause.IsSet())
	require.NoError(t, c.Dispatch(shared.Message{Type: shared.Resume}))
	assert.False(t, sig.Pause.IsSet())
	require.NoError(t, c.Dispatch(shared.Message{Type: shared.Tempo, Number: 140}))
	bpm, _ := tempo.Poll()
	assert.Equal(t, float64(140), bpm)
	require.ErrorIs(t, c.Dispatch(shared.Message{Type: shared.Tempo}), ErrBadTempo)

	sig.Complete.Set()
	require.NoError(t, c.Dispatch(shared.Message{Type: shared.AcknowledgeComplete}))
	assert.False(t, sig.Complete.IsSet())

	require.ErrorIs(t, c.Dispatch(shared.Message{Type: shared.Event(42)}), shared.ErrUnknownAction)

	require.NoError(t, c.Dispatch(shared.Message{Type: shared.Stop}))
	assert.True(t, sig.Stop.IsSet())
}

func TestStatus(t *testing.T) {
	c, _, _ := newTestController(&recordingSubmitter{})
	assert.Equal(t, "playing", c.Status().Phase)
	assert.Equal(t, 3, c.Status().Loops)

	bare := New(&recordingSubmitter{}, nil, music.NewSignals(), &music.TempoSlot{}, charmlog.New(io.Discard))
	assert.Equal(t, music.Status{}, bare.Status())
}
