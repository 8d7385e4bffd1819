package trigger

import (
	"log/slog"
	"sync/atomic"
)

// Inbox capacities. Triggers are only accepted in Ambient, so a short buffer
// is enough to hold a burst until the orchestrator drains it.
const (
	DefaultEventBuffer  = 16
	DefaultPhraseBuffer = 16
)

// Inbox funnels many producers into one consumer. Publishing never blocks:
// when the buffer is full the event is dropped and counted.
type Inbox struct {
	events   chan Event
	phrases  chan string
	overflow atomic.Uint64
}

func NewInbox() *Inbox {
	return &Inbox{
		events:  make(chan Event, DefaultEventBuffer),
		phrases: make(chan string, DefaultPhraseBuffer),
	}
}

// Publish enqueues ev and reports whether it was accepted into the buffer.
func (in *Inbox) Publish(ev Event) bool {
	select {
	case in.events <- ev:
		return true
	default:
		in.overflow.Add(1)
		slog.Debug("trigger inbox full, dropping event", "source", ev.Source.String())
		return false
	}
}

// Hear forwards a phrase picked up by a listening source. The orchestrator
// checks these for the stop keyword while recording.
func (in *Inbox) Hear(phrase string) {
	select {
	case in.phrases <- phrase:
	default:
		slog.Debug("phrase buffer full, dropping phrase")
	}
}

// Events is the single consumption point for triggers.
func (in *Inbox) Events() <-chan Event { return in.events }

// Phrases yields heard phrases.
func (in *Inbox) Phrases() <-chan string { return in.phrases }

// Overflow is the number of events dropped because the buffer was full.
func (in *Inbox) Overflow() uint64 { return in.overflow.Load() }
