// Package remote wraps the speech services the orb depends on: transcription,
// reply generation and speech synthesis. Every call is bounded by a timeout
// and fails with a Remote, Timeout or Unavailable error.
package remote

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/orb/internal/audio"
	apperrors "github.com/GriffinCanCode/orb/internal/errors"
	"github.com/GriffinCanCode/orb/internal/resilience"
)

// Phases, recorded on errors and spans.
const (
	PhaseTranscribe = "transcribe"
	PhaseReply      = "reply"
	PhaseSynthesize = "synthesize"
)

// Services is the boundary the orchestrator calls through.
type Services interface {
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
	Reply(ctx context.Context, text string) (string, error)
	Synthesize(ctx context.Context, text string) (audio.Clip, error)
}

// classify maps a call failure onto the error taxonomy.
func classify(err error, phase string) error {
	switch {
	case errors.Is(err, resilience.ErrOpen):
		return apperrors.Wrap(err, apperrors.Unavailable, "speech service failing fast").WithPhase(phase)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.Timeout, phase+" timed out").WithPhase(phase)
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.Cancelled, phase+" cancelled").WithPhase(phase)
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr.WithPhase(phase)
	}
	return apperrors.Wrap(err, apperrors.Remote, phase+" failed").WithPhase(phase)
}
