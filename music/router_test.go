package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/gomidi/midi/v2"
)

func TestRouterPairs(t *testing.T) {
	r := NewRouter(nil, map[string]bool{"bass": false, "chord": true})

	assert.Equal(t, Pair{On: 0x90, Off: 0x80}, r.Lookup("drum"))
	assert.Equal(t, Pair{On: 0x81, Off: 0x81}, r.Lookup("bass"))
	assert.Equal(t, Pair{On: 0x92, Off: 0x82}, r.Lookup("chord"))
	assert.Equal(t, Pair{On: 0x94, Off: 0x84}, r.Lookup("harmony"))
	assert.Equal(t, sink, r.Lookup("theremin"))
}

func TestRouterMessage(t *testing.T) {
	r := NewRouter(map[string]uint8{"melody": 9}, nil)

	on := r.Message(Event{Kind: NoteOn, Pitch: 64, Velocity: 80, Instrument: "melody"})
	off := r.Message(Event{Kind: NoteOff, Pitch: 64, Instrument: "melody"})
	assert.Equal(t, midi.Message{0x99, 64, 80}, on)
	assert.Equal(t, midi.Message{0x89, 64, 0}, off)

	var ch, key, vel uint8
	assert.True(t, on.GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, uint8(9), ch)

	// drum is not in this router's channel map
	assert.Equal(t, midi.Message{0x80, 36, 100}, r.Message(Event{Kind: NoteOn, Pitch: 36, Velocity: 100, Instrument: "drum"}))
}
