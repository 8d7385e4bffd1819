// Package leds turns the orchestrator's visual intent into frames for the
// LED strip at a fixed tick rate. Pixel drivers live behind Strip.
package leds

import "fmt"

// Mode selects the animation pattern.
type Mode uint8

const (
	Idle Mode = iota
	Trigger
	Listening
	Speaking
	Error
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Trigger:
		return "trigger"
	case Listening:
		return "listening"
	case Speaking:
		return "speaking"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Intent is the animation directive. Loudness is meaningful only when
// HasLoudness is set, which the orchestrator does during Speaking.
type Intent struct {
	Mode        Mode
	Loudness    float64
	HasLoudness bool
}

// Of returns an intent without a loudness sample.
func Of(m Mode) Intent { return Intent{Mode: m} }

// SpeakingAt returns a Speaking intent carrying loudness clamped to [0,1].
func SpeakingAt(loudness float64) Intent {
	return Intent{Mode: Speaking, Loudness: max(0, min(1, loudness)), HasLoudness: true}
}
