// Package events defines the run lifecycle notifications fanned out to
// observers such as metrics, the live notifier and the debug log.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/pipegrid/internal/node"
)

// Kind distinguishes run-level from instance-level events.
type Kind string

const (
	KindRunStarted  Kind = "run_started"
	KindTransition  Kind = "transition"
	KindRunFinished Kind = "run_finished"
)

// Event is a single lifecycle notification.
type Event struct {
	Kind     Kind        `json:"kind"`
	RunID    string      `json:"run_id"`
	Pipeline string      `json:"pipeline,omitempty"`
	Instance string      `json:"instance,omitempty"`
	Job      string      `json:"job,omitempty"`
	From     node.Status `json:"from,omitempty"`
	To       node.Status `json:"to,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	Error    string      `json:"error,omitempty"`
	// Duration is set on terminal transitions of instances that ran.
	Duration time.Duration `json:"duration,omitempty"`
	// Verdict is set on KindRunFinished.
	Verdict string    `json:"verdict,omitempty"`
	Time    time.Time `json:"time"`
}

// Observer receives events. Implementations must not block for long; the
// executor loop calls them inline.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Multi fans an event out to every observer in order.
type Multi []Observer

// Observe implements Observer.
func (m Multi) Observe(ctx context.Context, ev Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(ctx, ev)
		}
	}
}

// Recorder keeps every event in memory. It is used by tests and by the
// status server's recent-events view.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe implements Observer.
func (r *Recorder) Observe(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Transitions returns the "instance:status" sequence of transition events.
func (r *Recorder) Transitions() []string {
	var out []string
	for _, ev := range r.Events() {
		if ev.Kind == KindTransition {
			out = append(out, ev.Instance+":"+ev.To.String())
		}
	}
	return out
}
