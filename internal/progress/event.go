// Package progress carries crawl events from the engine to whoever is
// watching: an SSE response, a websocket, or the log.
package progress

import (
	"context"
	"sync"
	"time"
)

// Kind classifies an event. Its emoji prefixes the rendered line.
type Kind string

const (
	KindStart      Kind = "start"
	KindLoaded     Kind = "loaded"
	KindPages      Kind = "pages"
	KindPage       Kind = "page"
	KindItem       Kind = "item"
	KindNew        Kind = "new"
	KindUpdated    Kind = "updated"
	KindUnchanged  Kind = "unchanged"
	KindWarning    Kind = "warning"
	KindError      Kind = "error"
	KindCheckpoint Kind = "checkpoint"
	KindPageDone   Kind = "page_done"
	KindFinished   Kind = "finished"
	KindDone       Kind = "done"
)

// Sentinel is the last line of every stream.
const Sentinel = "DONE"

var emoji = map[Kind]string{
	KindStart:      "🚀",
	KindLoaded:     "📂",
	KindPages:      "📦",
	KindPage:       "📄",
	KindItem:       "🔍",
	KindNew:        "✅",
	KindUpdated:    "🔄",
	KindUnchanged:  "⏭️",
	KindWarning:    "⚠️",
	KindError:      "❌",
	KindCheckpoint: "💾",
	KindPageDone:   "🏁",
	KindFinished:   "🎉",
}

// Event is one progress message.
type Event struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	ComicID string    `json:"comic_id,omitempty"`
	Page    int       `json:"page,omitempty"`
	At      time.Time `json:"at"`
}

// Line renders the event as a single UTF-8 text line.
func (e Event) Line() string {
	if e.Kind == KindDone {
		return Sentinel
	}
	if p, ok := emoji[e.Kind]; ok {
		return p + " " + e.Message
	}
	return e.Message
}

// Sink receives events. An error tells the engine to stop.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// ChanSink forwards events to a channel consumed by a transport.
type ChanSink chan<- Event

func (c ChanSink) Emit(ctx context.Context, ev Event) error {
	select {
	case c <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events, in order.
func (r *Recorder) Kinds() []Kind {
	evs := r.Events()
	out := make([]Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
