package music

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/JeanRibes/groovecast/shared"

	"github.com/google/uuid"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type Kind uint8

const (
	NoteOn Kind = iota + 1
	NoteOff
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is one note message of a groove. Delta is counted in ticks from the
// previous event of the same groove.
type Event struct {
	Delta      uint32
	Kind       Kind
	Pitch      uint8
	Velocity   uint8
	Instrument string
}

var ErrMalformedGroove = errors.New("malformed groove")

// Settings travel with a groove and are adopted by the broadcaster when the
// groove becomes active. A nil DesiredLoops keeps the current value.
type Settings struct {
	DesiredLoops *int
	Enabled      map[string]bool
}

func Loops(n int) *int { return &n }

// Groove is immutable once built.
type Groove struct {
	id       string
	events   []Event
	abs      []uint32
	tempo    uint32 // microseconds per beat
	tpb      uint16
	length   uint32
	settings Settings
}

type GrooveOption func(*Groove)

// WithLength sets the loop length in ticks. It is only used when longer than
// the span of the events.
func WithLength(ticks uint32) GrooveOption {
	return func(g *Groove) { g.length = ticks }
}

func WithSettings(s Settings) GrooveOption {
	return func(g *Groove) {
		g.settings = Settings{}
		if s.DesiredLoops != nil {
			g.settings.DesiredLoops = Loops(*s.DesiredLoops)
		}
		if s.Enabled != nil {
			g.settings.Enabled = make(map[string]bool, len(s.Enabled))
			for k, v := range s.Enabled {
				g.settings.Enabled[k] = v
			}
		}
	}
}

// WithTempo overrides the tempo given to NewGroove.
func WithTempo(tempoMicros uint32) GrooveOption {
	return func(g *Groove) { g.tempo = tempoMicros }
}

func NewGroove(events []Event, tempoMicros uint32, ticksPerBeat uint16, opts ...GrooveOption) *Groove {
	g := &Groove{
		id:     uuid.NewString(),
		events: make([]Event, len(events)),
		abs:    make([]uint32, len(events)),
		tempo:  tempoMicros,
		tpb:    ticksPerBeat,
	}
	copy(g.events, events)
	tick := uint32(0)
	for i, ev := range g.events {
		tick += ev.Delta
		g.abs[i] = tick
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TempoMicros converts beats per minute to microseconds per beat.
func TempoMicros(bpm float64) uint32 {
	if bpm <= 0 {
		return 0
	}
	return uint32(math.Round(60_000_000 / bpm))
}

func (g *Groove) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil groove", ErrMalformedGroove)
	}
	if len(g.events) == 0 {
		return fmt.Errorf("%w: no events", ErrMalformedGroove)
	}
	if g.tpb == 0 {
		return fmt.Errorf("%w: ticks per beat must be positive", ErrMalformedGroove)
	}
	if g.tempo == 0 {
		return fmt.Errorf("%w: tempo must be positive", ErrMalformedGroove)
	}
	for i, ev := range g.events {
		if ev.Kind != NoteOn && ev.Kind != NoteOff {
			return fmt.Errorf("%w: event %d has %s", ErrMalformedGroove, i, ev.Kind)
		}
		if ev.Pitch > 127 || ev.Velocity > 127 {
			return fmt.Errorf("%w: event %d out of range (pitch %d, velocity %d)", ErrMalformedGroove, i, ev.Pitch, ev.Velocity)
		}
	}
	return nil
}

func (g *Groove) ID() string { return g.id }

func (g *Groove) Len() int { return len(g.events) }

func (g *Groove) Event(i int) Event { return g.events[i] }

// AbsTick is the tick of event i counted from the start of the loop.
func (g *Groove) AbsTick(i int) uint32 { return g.abs[i] }

func (g *Groove) Events() []Event {
	events := make([]Event, len(g.events))
	copy(events, g.events)
	return events
}

func (g *Groove) TempoMicros() uint32 { return g.tempo }

func (g *Groove) TicksPerBeat() uint16 { return g.tpb }

func (g *Groove) BPM() float64 {
	if g.tempo == 0 {
		return shared.DefaultBPM
	}
	return 60_000_000 / float64(g.tempo)
}

func (g *Groove) Settings() Settings {
	var s Settings
	if g.settings.DesiredLoops != nil {
		s.DesiredLoops = Loops(*g.settings.DesiredLoops)
	}
	if g.settings.Enabled != nil {
		s.Enabled = make(map[string]bool, len(g.settings.Enabled))
		for k, v := range g.settings.Enabled {
			s.Enabled[k] = v
		}
	}
	return s
}

// Span is the tick of the last event.
func (g *Groove) Span() uint32 {
	if len(g.abs) == 0 {
		return 0
	}
	return g.abs[len(g.abs)-1]
}

// LengthTicks is the loop length. A pass lasts at least one tick so a groove
// whose events all sit at tick 0 is still paced.
func (g *Groove) LengthTicks() uint32 {
	return max(g.length, g.Span(), 1)
}

func (g *Groove) ticks(n uint32, bpm float64) time.Duration {
	if bpm <= 0 || g.tpb == 0 {
		return 0
	}
	return time.Duration(float64(n) * float64(time.Minute) / bpm / float64(g.tpb))
}

func (g *Groove) TickDuration(bpm float64) time.Duration { return g.ticks(1, bpm) }

// Duration of one pass through the groove at bpm.
func (g *Groove) Duration(bpm float64) time.Duration { return g.ticks(g.LengthTicks(), bpm) }

// Offset of event i from the start of the pass at bpm.
func (g *Groove) Offset(i int, bpm float64) time.Duration { return g.ticks(g.abs[i], bpm) }

func (g *Groove) String() string {
	return fmt.Sprintf("groove %s (%d events, %d ticks, %.1f bpm)", g.id, len(g.events), g.LengthTicks(), g.BPM())
}

type absEvent struct {
	tick uint32
	ev   Event
}

// FromSMF merges the note messages of every track into one groove. Each
// track is named after its track-name meta event, or after its position.
func FromSMF(s *smf.SMF, opts ...GrooveOption) (*Groove, error) {
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported time format %v", ErrMalformedGroove, s.TimeFormat)
	}
	all := []absEvent{}
	bpm := float64(0)
	for i, tr := range s.Tracks {
		name := shared.InstrumentName(i)
		for _, ev := range tr {
			var text string
			if ev.Message.GetMetaTrackName(&text) && strings.TrimSpace(text) != "" {
				name = strings.ToLower(strings.TrimSpace(text))
				break
			}
		}
		absTime := uint32(0)
		var ch, key, vel uint8
		for _, ev := range tr {
			absTime += ev.Delta
			var t float64
			if ev.Message.GetMetaTempo(&t) && bpm == 0 {
				bpm = t
				continue
			}
			msg := midi.Message(ev.Message)
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				all = append(all, absEvent{absTime, Event{Kind: NoteOn, Pitch: key, Velocity: vel, Instrument: name}})
			case msg.GetNoteEnd(&ch, &key):
				all = append(all, absEvent{absTime, Event{Kind: NoteOff, Pitch: key, Instrument: name}})
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].tick < all[j].tick })

	events := make([]Event, 0, len(all))
	prev := uint32(0)
	for _, ae := range all {
		ev := ae.ev
		ev.Delta = ae.tick - prev
		prev = ae.tick
		events = append(events, ev)
	}
	if bpm == 0 {
		bpm = shared.DefaultBPM
	}
	return NewGroove(events, TempoMicros(bpm), ticks.Resolution(), opts...), nil
}
