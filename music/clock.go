package music

import "time"

// Clock is the broadcaster's time source. Now must be monotonic.
type Clock interface {
	Now() time.Duration
	Sleep(d time.Duration)
}

type realClock struct {
	start time.Time
}

func NewClock() Clock {
	return realClock{start: time.Now()}
}

// time.Since reads the monotonic reading carried by start.
func (c realClock) Now() time.Duration { return time.Since(c.start) }

func (c realClock) Sleep(d time.Duration) { time.Sleep(d) }
