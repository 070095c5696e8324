package progress

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

type discard struct{}

func (discard) Send(context.Context, Event) error { return nil }

// Discard drops every event.
var Discard Channel = discard{}

// Chan delivers events to a Go channel. Send blocks until the event is
// taken or ctx ends; a closed Done channel means the consumer left.
type Chan struct {
	C    chan Event
	Done <-chan struct{}
}

// NewChan returns a Chan with the given buffer.
func NewChan(buffer int, done <-chan struct{}) *Chan {
	return &Chan{C: make(chan Event, buffer), Done: done}
}

func (c *Chan) Send(ctx context.Context, e Event) error {
	select {
	case c.C <- e:
		return nil
	case <-c.Done:
		return ErrDetached
	case <-ctx.Done():
		return ErrDetached
	}
}

// JSONLines writes each event as one JSON object per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines writes events to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) Send(_ context.Context, e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(e); err != nil {
		return ErrDetached
	}
	return nil
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// DetachAfter makes Send fail once this many events were recorded.
	// Zero never detaches.
	DetachAfter int
}

func (r *Recorder) Send(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DetachAfter > 0 && len(r.events) >= r.DetachAfter {
		return ErrDetached
	}
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
