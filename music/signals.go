package music

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
)

// Flag is a level-triggered boolean shared between goroutines. Waiters
// select on Raised or Lowered instead of polling.
type Flag struct {
	mu      sync.Mutex
	set     bool
	raised  chan struct{} // closed while set
	lowered chan struct{} // closed while clear
}

func NewFlag() *Flag {
	f := &Flag{
		raised:  make(chan struct{}),
		lowered: make(chan struct{}),
	}
	close(f.lowered)
	return f
}

func (f *Flag) Set() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return
	}
	f.set = true
	close(f.raised)
	f.lowered = make(chan struct{})
}

func (f *Flag) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		return
	}
	f.set = false
	close(f.lowered)
	f.raised = make(chan struct{})
}

func (f *Flag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

func (f *Flag) Raised() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raised
}

func (f *Flag) Lowered() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lowered
}

// Wait blocks until the flag is set.
func (f *Flag) Wait(ctx context.Context) error {
	select {
	case <-f.Raised():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latch is a flag that can only be set.
type Latch struct {
	once sync.Once
	done chan struct{}
}

func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

func (l *Latch) Set() {
	l.once.Do(func() { close(l.done) })
}

func (l *Latch) IsSet() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Latch) Done() <-chan struct{} { return l.done }

type Signals struct {
	Pause    *Flag
	Stop     *Latch
	Ready    *Flag // a groove was put on the channel
	Complete *Flag // generation finished for the last parameter request
}

func NewSignals() *Signals {
	return &Signals{
		Pause:    NewFlag(),
		Stop:     NewLatch(),
		Ready:    NewFlag(),
		Complete: NewFlag(),
	}
}

// TempoSlot holds the latest tempo override until the broadcaster picks it
// up. Older offers are overwritten.
type TempoSlot struct {
	bits atomic.Uint64
}

func (t *TempoSlot) Offer(bpm float64) {
	if bpm <= 0 {
		return
	}
	t.bits.Store(math.Float64bits(bpm))
}

func (t *TempoSlot) Poll() (float64, bool) {
	if t == nil {
		return 0, false
	}
	bits := t.bits.Swap(0)
	if bits == 0 {
		return 0, false
	}
	return math.Float64frombits(bits), true
}
