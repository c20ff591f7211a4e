package music

import (
	"sync"
	"time"
)

type Phase int

const (
	AwaitingFirstGroove Phase = iota
	Playing
	Stopped
)

func (p Phase) String() string {
	switch p {
	case AwaitingFirstGroove:
		return "awaiting_first_groove"
	case Playing:
		return "playing"
	default:
		return "stopped"
	}
}

// Status is a copy of the broadcaster state taken at the last loop boundary,
// plus live counters.
type Status struct {
	Phase        string  `json:"phase"`
	GrooveID     string  `json:"groove_id,omitempty"`
	Loops        int     `json:"loops"`
	DesiredLoops int     `json:"desired_loops"`
	Queued       bool    `json:"queued"`
	BPM          float64 `json:"bpm"`
	Paused       bool    `json:"paused"`
	Pending      int     `json:"pending"`
	Swaps        int     `json:"swaps"`
	Sent         uint64  `json:"sent"`
	Failed       uint64  `json:"failed"`
}

// loopState is only touched by the goroutine running the broadcaster.
type loopState struct {
	phase        Phase
	active       *Groove
	router       Router
	loops        int
	desiredLoops int
	queued       bool
	swaps        int

	bpm      float64
	override float64
	duration time.Duration

	// reference is the nominal start of the pass counted by passes. It moves
	// when the pass duration changes and when playback was paused.
	reference time.Duration
	passes    int
}

// rebase moves the reference to the start of the current pass.
func (s *loopState) rebase() {
	s.reference += time.Duration(s.passes) * s.duration
	s.passes = 0
}

func (s *loopState) passStart() time.Duration {
	return s.reference + time.Duration(s.passes)*s.duration
}

type statusBoard struct {
	sync.Mutex
	status Status
}

func (b *statusBoard) publish(s *loopState, paused bool, pending int) {
	b.Lock()
	defer b.Unlock()
	b.status.Phase = s.phase.String()
	if s.active != nil {
		b.status.GrooveID = s.active.ID()
	}
	b.status.Loops = s.loops
	b.status.DesiredLoops = s.desiredLoops
	b.status.Queued = s.queued
	b.status.BPM = s.bpm
	b.status.Paused = paused
	b.status.Pending = pending
	b.status.Swaps = s.swaps
}

func (b *statusBoard) setPaused(paused bool) {
	b.Lock()
	b.status.Paused = paused
	b.Unlock()
}

func (b *statusBoard) setPhase(p Phase) {
	b.Lock()
	b.status.Phase = p.String()
	b.Unlock()
}

func (b *statusBoard) snapshot() Status {
	b.Lock()
	defer b.Unlock()
	return b.status
}
