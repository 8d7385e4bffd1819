// Package trigger collects trigger signals from every enabled source into a
// single inbox read by the orchestrator.
package trigger

import "time"

// Source identifies where a trigger came from. It is recorded for logging
// and metrics only; all sources are treated identically.
type Source uint8

const (
	Touch Source = iota
	WakeWord
	Remote
)

func (s Source) String() string {
	switch s {
	case Touch:
		return "touch"
	case WakeWord:
		return "wake_word"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}

// Event is an immutable trigger record.
type Event struct {
	Source    Source
	Timestamp time.Time
}

// NewEvent stamps a trigger from src with the current time.
func NewEvent(src Source) Event {
	return Event{Source: src, Timestamp: time.Now()}
}
