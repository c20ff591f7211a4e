package shared

import (
	"errors"
	"fmt"
	"strings"
)

type Event int

const (
	Pause Event = iota
	Resume
	Stop
	Tempo
	AcknowledgeComplete
)

var ErrUnknownAction = errors.New("unknown action")

type Message struct {
	Type   Event
	Number float64
}

func (e Event) String() string {
	switch e {
	case Pause:
		return "pause"
	case Resume:
		return "resume"
	case Stop:
		return "stop"
	case Tempo:
		return "tempo"
	case AcknowledgeComplete:
		return "acknowledge_complete"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ParseEvent maps the action names used by the web front end.
func ParseEvent(action string) (Event, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "pause":
		return Pause, nil
	case "resume", "play":
		return Resume, nil
	case "stop":
		return Stop, nil
	case "tempo":
		return Tempo, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

var DefaultBPM = float64(120)

const (
	Drum    = "drum"
	Bass    = "bass"
	Chord   = "chord"
	Melody  = "melody"
	Harmony = "harmony"
)

// Instruments lists the agents in their default channel order.
var Instruments = []string{Drum, Bass, Chord, Melody, Harmony}

func InstrumentName(track int) string {
	if track >= 0 && track < len(Instruments) {
		return Instruments[track]
	}
	return fmt.Sprintf("track %d", track)
}
