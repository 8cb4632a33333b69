package relay

import (
	"io"
	"sync"
)

// Sink receives one text payload per logical write.
type Sink func(text string)

// Channel is a shared output destination. Writers hold the Channel, never
// the underlying writer, so a Relay can divert everything written to it.
type Channel struct {
	mu sync.Mutex
	w  io.Writer
}

func NewChannel(w io.Writer) *Channel {
	if w == nil {
		w = io.Discard
	}
	return &Channel{w: w}
}

// Write holds the channel while writing, so a swap waits for writes already
// in progress. A sink must not write back to its own channel.
func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Write(p)
}

func (c *Channel) swap(w io.Writer) io.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.w
	c.w = w
	return prev
}

// Relay diverts one or more channels to a Sink between Activate and
// Deactivate. The zero value is not usable; construct with New.
type Relay struct {
	channels []*Channel

	mu     sync.Mutex
	saved  []io.Writer
	active bool
}

func New(channels ...*Channel) *Relay {
	return &Relay{channels: channels}
}

// Activate points every channel at sink. Activating an already active relay
// replaces the sink and keeps the originally saved destinations.
func (r *Relay) Activate(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := sinkWriter{sink: sink}

	if r.active {
		for _, ch := range r.channels {
			ch.swap(w)
		}
		return
	}

	r.saved = make([]io.Writer, len(r.channels))
	for i, ch := range r.channels {
		r.saved[i] = ch.swap(w)
	}
	r.active = true
}

// Deactivate restores the original destinations. Safe to call more than once.
func (r *Relay) Deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return
	}
	for i, ch := range r.channels {
		ch.swap(r.saved[i])
	}
	r.saved = nil
	r.active = false
}

func (r *Relay) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Do runs fn with the relay active and restores the channels on every exit
// path, panics included.
func (r *Relay) Do(sink Sink, fn func()) {
	r.Activate(sink)
	defer r.Deactivate()
	fn()
}

type sinkWriter struct {
	sink Sink
}

func (s sinkWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		s.sink(string(p))
	}
	return len(p), nil
}
