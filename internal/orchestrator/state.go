package orchestrator

import (
	"fmt"

	"github.com/GriffinCanCode/orb/internal/leds"
)

// State is the session state. Exactly one value exists process-wide.
type State uint32

const (
	Ambient State = iota
	Recording
	Processing
	Speaking
	Cooldown
)

func (s State) String() string {
	switch s {
	case Ambient:
		return "ambient"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	case Cooldown:
		return "cooldown"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// Event drives a transition.
type Event uint8

const (
	Accept      Event = iota // trigger accepted
	CaptureDone              // silence or hard cutoff
	Cancel                   // stop keyword
	Fail                     // capture or remote error, empty transcript
	ReplyReady               // reply text and audio in hand
	PlaybackDone
	FadeDone
	Reset // control surface reset
)

var eventNames = [...]string{
	Accept:       "accept",
	CaptureDone:  "capture_done",
	Cancel:       "cancel",
	Fail:         "fail",
	ReplyReady:   "reply_ready",
	PlaybackDone: "playback_done",
	FadeDone:     "fade_done",
	Reset:        "reset",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// InvalidTransitionError reports an event that is not legal in a state.
type InvalidTransitionError struct {
	From  State
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s on %s", e.Event, e.From)
}

// Next is the transition function. It has no side effects.
func Next(from State, ev Event) (State, error) {
	if ev == Reset {
		return Ambient, nil
	}
	switch from {
	case Ambient:
		if ev == Accept {
			return Recording, nil
		}
	case Recording:
		switch ev {
		case CaptureDone:
			return Processing, nil
		case Cancel, Fail:
			return Cooldown, nil
		}
	case Processing:
		switch ev {
		case ReplyReady:
			return Speaking, nil
		case Cancel, Fail:
			return Cooldown, nil
		}
	case Speaking:
		switch ev {
		case PlaybackDone, Fail:
			return Cooldown, nil
		}
	case Cooldown:
		if ev == FadeDone {
			return Ambient, nil
		}
	}
	return from, &InvalidTransitionError{From: from, Event: ev}
}

// Outcome is the path a session took into Cooldown.
type Outcome uint8

const (
	Success Outcome = iota
	Cancelled
	Failed
	// Abandoned sessions were overtaken by a reset or shutdown; they end
	// without touching shared state.
	Abandoned
)

func (o Outcome) String() string {
	return [...]string{"success", "cancel", "fail", "abandoned"}[o]
}

// entryIntent is the visual intent a state starts with.
func entryIntent(s State) leds.Intent {
	switch s {
	case Recording, Processing:
		return leds.Of(leds.Listening)
	case Speaking:
		return leds.SpeakingAt(0)
	default:
		return leds.Of(leds.Idle)
	}
}
