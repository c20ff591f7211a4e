package generation

import (
	"github.com/JeanRibes/groovecast/music"
	"github.com/JeanRibes/groovecast/shared"
)

// Params is one generation request as sent by the web front end. Fields the
// file library cannot honour are still carried so a model-backed Generator
// receives the full request.
type Params struct {
	Tempo        int    `json:"tempo" yaml:"tempo"`
	Length       int    `json:"length" yaml:"length"`
	LoopMeasures int    `json:"loop_measures" yaml:"loop_measures"`
	Style        string `json:"style" yaml:"style"`
	Playstyle    string `json:"playstyle" yaml:"playstyle"`

	PlayDrum    *bool `json:"play_drum,omitempty" yaml:"play_drum"`
	PlayBass    *bool `json:"play_bass,omitempty" yaml:"play_bass"`
	PlayChord   *bool `json:"play_chord,omitempty" yaml:"play_chord"`
	PlayMelody  *bool `json:"play_melody,omitempty" yaml:"play_melody"`
	PlayHarmony *bool `json:"play_harmony,omitempty" yaml:"play_harmony"`

	DurationPreferencesBass   bool    `json:"duration_preferences_bass" yaml:"duration_preferences_bass"`
	ArpeggiateChord           bool    `json:"arpegiate_chord" yaml:"arpegiate_chord"`
	BounceChord               bool    `json:"bounce_chord" yaml:"bounce_chord"`
	ArpStyle                  int     `json:"arp_style" yaml:"arp_style"`
	NoteTemperatureMelody     float64 `json:"note_temperature_melody" yaml:"note_temperature_melody"`
	DurationTemperatureMelody float64 `json:"duration_temperature_melody" yaml:"duration_temperature_melody"`
	NoPause                   bool    `json:"no_pause" yaml:"no_pause"`
	ScaleMelody               string  `json:"scale_melody" yaml:"scale_melody"`
	DurationPreferencesMelody []int   `json:"duration_preferences_melody" yaml:"duration_preferences_melody"`
	IntervalHarmony           int     `json:"interval_harmony" yaml:"interval_harmony"`

	// DesiredLoops, when set, replaces the broadcaster's loop threshold once
	// the resulting groove is playing.
	DesiredLoops *int `json:"desired_loops,omitempty" yaml:"desired_loops"`
	Quantize     bool `json:"quantize" yaml:"quantize"`
}

func DefaultParams() Params {
	p := Params{}
	p.Normalize()
	return p
}

// Normalize fills zero values with the defaults of the web front end.
func (p *Params) Normalize() {
	if p.Tempo <= 0 {
		p.Tempo = int(shared.DefaultBPM)
	}
	if p.Length <= 0 {
		p.Length = 12
	}
	if p.LoopMeasures <= 0 {
		p.LoopMeasures = 4
	}
	if p.Style == "" {
		p.Style = "country"
	}
	if p.Playstyle == "" {
		p.Playstyle = "bass_drum"
	}
	if p.ArpStyle == 0 {
		p.ArpStyle = 2
	}
	if p.NoteTemperatureMelody == 0 {
		p.NoteTemperatureMelody = 0.8
	}
	if p.DurationTemperatureMelody == 0 {
		p.DurationTemperatureMelody = 0.8
	}
	if p.ScaleMelody == "" {
		p.ScaleMelody = "major pentatonic"
	}
	if p.DurationPreferencesMelody == nil {
		p.DurationPreferencesMelody = []int{1, 3, 5, 7, 9, 11, 13, 15}
	}
	if p.IntervalHarmony == 0 {
		p.IntervalHarmony = 5
	}
}

func enabled(b *bool) bool { return b == nil || *b }

// Enabled reports which instruments should sound.
func (p Params) Enabled() map[string]bool {
	return map[string]bool{
		shared.Drum:    enabled(p.PlayDrum),
		shared.Bass:    enabled(p.PlayBass),
		shared.Chord:   enabled(p.PlayChord),
		shared.Melody:  enabled(p.PlayMelody),
		shared.Harmony: enabled(p.PlayHarmony),
	}
}

// Settings is the playback configuration that travels with the groove.
func (p Params) Settings() music.Settings {
	s := music.Settings{Enabled: p.Enabled()}
	if p.DesiredLoops != nil {
		s.DesiredLoops = music.Loops(*p.DesiredLoops)
	}
	return s
}
