// Package progress carries run events to whoever started the run.
//
// The orchestrator writes to a Channel without knowing whether it is a socket,
// a queue or a test sink. A Reporter sits in front of the Channel and enforces
// the stream contract: percent never decreases, exactly one terminal event is
// sent, and nothing follows it.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Event types.
const (
	TypeProgress = "progress"
	TypeComplete = "complete"
	TypeError    = "error"
)

// ErrDetached is returned by a Channel whose consumer is gone.
var ErrDetached = errors.New("progress: consumer detached")

// Event is one message of the stream. Only the fields of its type are set.
type Event struct {
	Type    string
	Percent float64
	Message string
	Data    any
	Error   string
}

// MarshalJSON renders the wire form of each event type.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeProgress:
		return json.Marshal(struct {
			Type    string  `json:"type"`
			Percent float64 `json:"percent"`
			Message string  `json:"message"`
		}{e.Type, e.Percent, e.Message})
	case TypeComplete:
		return json.Marshal(struct {
			Type string `json:"type"`
			Data any    `json:"data"`
		}{e.Type, e.Data})
	default:
		return json.Marshal(struct {
			Type  string `json:"type"`
			Error string `json:"error"`
		}{e.Type, e.Error})
	}
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}

// Channel receives events in emission order.
type Channel interface {
	Send(ctx context.Context, e Event) error
}

// Reporter serializes events of one run onto a Channel.
type Reporter struct {
	mu       sync.Mutex
	ch       Channel
	percent  float64
	message  string
	done     bool
	detached bool
}

// NewReporter wraps ch. A nil channel discards events.
func NewReporter(ch Channel) *Reporter {
	if ch == nil {
		ch = Discard
	}
	return &Reporter{ch: ch}
}

// Progress emits a progress event. Percent is clamped to [0,100] and never
// goes below the last value sent.
func (r *Reporter) Progress(ctx context.Context, percent float64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done || r.detached {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent < r.percent {
		percent = r.percent
	}
	r.percent = percent
	r.message = message
	r.send(ctx, Event{Type: TypeProgress, Percent: percent, Message: message})
}

// Complete emits the terminal complete event.
func (r *Reporter) Complete(ctx context.Context, data any) {
	r.terminal(ctx, Event{Type: TypeComplete, Data: data})
}

// Fail emits the terminal error event.
func (r *Reporter) Fail(ctx context.Context, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	r.terminal(ctx, Event{Type: TypeError, Error: msg})
}

func (r *Reporter) terminal(ctx context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	if r.detached {
		return
	}
	r.send(ctx, e)
}

func (r *Reporter) send(ctx context.Context, e Event) {
	if err := r.ch.Send(ctx, e); err != nil {
		r.detached = true
	}
}

// Detached reports whether the consumer has gone away.
func (r *Reporter) Detached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detached
}

// Done reports whether a terminal event was emitted.
func (r *Reporter) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// State returns the last percent and message.
func (r *Reporter) State() (float64, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent, r.message
}
