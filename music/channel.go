package music

import "context"

const DefaultCapacity = 10

// GrooveChannel is the bounded FIFO between the generation worker and the
// broadcaster. Put blocks while the channel is full; nothing else throttles
// generation.
type GrooveChannel struct {
	queue chan *Groove
	taken chan struct{}
}

func NewGrooveChannel(capacity int) *GrooveChannel {
	if capacity < 1 {
		capacity = 1
	}
	return &GrooveChannel{queue: make(chan *Groove, capacity), taken: make(chan struct{}, 1)}
}

// Put rejects malformed grooves before they are queued.
func (c *GrooveChannel) Put(ctx context.Context, g *Groove) error {
	if err := g.Validate(); err != nil {
		return err
	}
	select {
	case c.queue <- g:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *GrooveChannel) TryTake() (*Groove, bool) {
	select {
	case g := <-c.queue:
		c.took()
		return g, true
	default:
		return nil, false
	}
}

func (c *GrooveChannel) Take(ctx context.Context) (*Groove, error) {
	select {
	case g := <-c.queue:
		c.took()
		return g, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *GrooveChannel) took() {
	select {
	case c.taken <- struct{}{}:
	default:
	}
}

// Feed puts grooves one at a time, raising ready after each. The next groove
// is only put once the previous one has left the channel, since a single
// ready signal covers a single transition.
func (c *GrooveChannel) Feed(ctx context.Context, ready *Flag, grooves ...*Groove) error {
	for _, g := range grooves {
		for c.Len() > 0 {
			select {
			case <-c.taken:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := c.Put(ctx, g); err != nil {
			return err
		}
		ready.Set()
	}
	return nil
}

func (c *GrooveChannel) Len() int { return len(c.queue) }

func (c *GrooveChannel) Cap() int { return cap(c.queue) }
