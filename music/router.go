package music

import (
	"github.com/JeanRibes/groovecast/shared"

	"gitlab.com/gomidi/midi/v2"
)

// Pair holds the status bytes used for an instrument's note on and note off.
type Pair struct {
	On  uint8
	Off uint8
}

var DefaultChannels = map[string]uint8{
	shared.Drum:    0,
	shared.Bass:    1,
	shared.Chord:   2,
	shared.Melody:  3,
	shared.Harmony: 4,
}

// sink is used for instruments nobody mapped: a note off on channel 0 never
// sounds.
var sink = Pair{On: 0x80, Off: 0x80}

// Router maps instruments to status bytes. A disabled instrument gets its
// channel's note off byte for both messages so it stays silent without the
// broadcaster checking anything. Routers are replaced, never modified.
type Router struct {
	pairs map[string]Pair
}

func NewRouter(channels map[string]uint8, enabled map[string]bool) Router {
	if channels == nil {
		channels = DefaultChannels
	}
	pairs := make(map[string]Pair, len(channels))
	for name, ch := range channels {
		ch &= 0x0f
		on, ok := enabled[name]
		if !ok || on {
			pairs[name] = Pair{On: 0x90 | ch, Off: 0x80 | ch}
		} else {
			pairs[name] = Pair{On: 0x80 | ch, Off: 0x80 | ch}
		}
	}
	return Router{pairs: pairs}
}

func (r Router) Lookup(instrument string) Pair {
	if p, ok := r.pairs[instrument]; ok {
		return p
	}
	return sink
}

func (r Router) Message(ev Event) midi.Message {
	p := r.Lookup(ev.Instrument)
	status := p.Off
	if ev.Kind == NoteOn {
		status = p.On
	}
	return midi.Message{status, ev.Pitch, ev.Velocity}
}
