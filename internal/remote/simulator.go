package remote

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/GriffinCanCode/orb/internal/audio"
	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

// DefaultSimulatedTranscript is what the simulator hears when no transcript
// is configured.
const DefaultSimulatedTranscript = "hello orb, how are you today"

// Simulator implements Services locally: a canned transcript, an echo reply
// and a tone whose length follows the reply text. It never touches the
// network, so simulation mode works offline.
type Simulator struct {
	Transcript string
	Latency    time.Duration
	SampleRate int
}

func NewSimulator(rate int) *Simulator {
	return &Simulator{Transcript: DefaultSimulatedTranscript, Latency: 300 * time.Millisecond, SampleRate: rate}
}

func (s *Simulator) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	if err := s.wait(ctx, PhaseTranscribe); err != nil {
		return "", err
	}
	if clip.Empty() {
		return "", nil
	}
	return s.Transcript, nil
}

func (s *Simulator) Reply(ctx context.Context, text string) (string, error) {
	if err := s.wait(ctx, PhaseReply); err != nil {
		return "", err
	}
	return "You said: " + strings.TrimSpace(text), nil
}

// Synthesize renders roughly 60 ms per character as a swelling 330 Hz tone.
func (s *Simulator) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	if err := s.wait(ctx, PhaseSynthesize); err != nil {
		return audio.Clip{}, err
	}
	d := time.Duration(len(text)) * 60 * time.Millisecond
	clip := audio.Tone(330, 0.25, d, s.SampleRate)
	period := float64(s.SampleRate) / 3
	for i := range clip.Samples {
		clip.Samples[i] *= float32(0.5 + 0.5*math.Sin(float64(i)/period*2*math.Pi))
	}
	return clip, nil
}

func (s *Simulator) wait(ctx context.Context, phase string) error {
	if s.Latency <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return classify(ctx.Err(), phase)
	case <-time.After(s.Latency):
		return nil
	}
}

// Failing is a Services whose every call fails with a Remote error. It is
// the stand-in when no API key is configured.
type Failing struct {
	Reason string
}

func (f Failing) err(phase string) error {
	return apperrors.New(apperrors.Remote, f.Reason).WithPhase(phase)
}

func (f Failing) Transcribe(context.Context, audio.Clip) (string, error) {
	return "", f.err(PhaseTranscribe)
}

func (f Failing) Reply(context.Context, string) (string, error) {
	return "", f.err(PhaseReply)
}

func (f Failing) Synthesize(context.Context, string) (audio.Clip, error) {
	return audio.Clip{}, f.err(PhaseSynthesize)
}
