package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/orb/internal/ambient"
	"github.com/GriffinCanCode/orb/internal/audio"
	apperrors "github.com/GriffinCanCode/orb/internal/errors"
	"github.com/GriffinCanCode/orb/internal/leds"
	"github.com/GriffinCanCode/orb/internal/remote"
	"github.com/GriffinCanCode/orb/internal/trace"
	"github.com/GriffinCanCode/orb/internal/trigger"
)

// Phase names used in logs, metrics and error metadata.
const (
	PhaseRecording = "recording"
	PhaseSpeaking  = "speaking"
	PhaseCooldown  = "cooldown"
)

// session is one trigger-to-ambient cycle. Once it is no longer the
// orchestrator's active session it must not touch shared state.
type session struct {
	id       string
	source   trigger.Source
	ctx      context.Context
	cancel   context.CancelFunc
	accepted time.Time

	rec       atomic.Pointer[audio.Recording]
	stopHeard atomic.Bool
}

func (o *Orchestrator) runSession(s *session) {
	defer s.cancel()

	ctx := trace.WithSession(s.ctx, s.id)
	ctx, span := trace.StartSpan(ctx, "session")
	span.SetAttr("source", s.source.String())
	log := trace.Logger(ctx)

	outcome, err := o.converse(ctx, s, log)
	if !o.current(s) {
		outcome = Abandoned
	}

	switch outcome {
	case Success:
		o.status.ClearError()
	case Failed:
		phase := apperrors.Phase(err)
		span.RecordError(err)
		o.status.SetError(err, phase)
		log.Error("session failed", "phase", phase, "code", apperrors.CodeOf(err).String(), "error", err)
	case Cancelled:
		log.Info("session cancelled")
	}
	o.status.countSession(outcome)
	o.metrics.RecordSession(outcome.String())
	span.SetAttr("outcome", outcome.String())
	span.End()

	if outcome != Abandoned {
		o.cooldown(ctx, s, outcome)
	}
	log.Info("session finished", "outcome", outcome.String(), "duration", time.Since(s.accepted))
}

// converse runs Recording, Processing and Speaking and returns how the
// session left them. The state is already Cooldown unless the session was
// abandoned.
func (o *Orchestrator) converse(ctx context.Context, s *session, log *slog.Logger) (Outcome, error) {
	svc := o.services()

	started := time.Now()
	rec, err := o.capture.Begin(ctx)
	if err != nil {
		return o.fail(s, phased(err, apperrors.Capture, PhaseRecording))
	}
	s.rec.Store(rec)
	if s.stopHeard.Load() {
		rec.Cancel()
	}
	o.setIntent(s, leds.Of(leds.Listening))

	res := rec.Run()
	o.metrics.RecordPhase(PhaseRecording, time.Since(started))
	o.metrics.RecordRecording(res.Reason.String(), res.Elapsed)
	log.Info("recording finished", "reason", res.Reason.String(), "elapsed", res.Elapsed,
		"samples", len(res.Clip.Samples))

	switch {
	case res.Err != nil:
		return o.fail(s, phased(res.Err, apperrors.Capture, PhaseRecording))
	case res.Reason == audio.StopCancelled:
		if s.stopHeard.Load() {
			log.Info("stop keyword heard mid-recording")
		}
		return o.cancelled(s)
	}
	if !o.transition(s, CaptureDone) {
		return Abandoned, nil
	}

	text, err := remoteCall(ctx, o, s, remote.PhaseTranscribe, func(c context.Context) (string, error) {
		return svc.Transcribe(c, res.Clip)
	})
	if err != nil {
		return o.fail(s, err)
	}
	if !o.current(s) {
		return Abandoned, nil
	}
	o.status.SetTranscript(text)
	log.Info("transcript received", "summary", Summarize(text))

	if trigger.ContainsFold(text, o.cfg.StopKeyword) {
		log.Info("stop keyword in transcript")
		return o.cancelled(s)
	}
	if strings.TrimSpace(text) == "" {
		return o.fail(s, apperrors.New(apperrors.EmptyTranscript, "no speech recognised").WithPhase(remote.PhaseTranscribe))
	}

	reply, err := remoteCall(ctx, o, s, remote.PhaseReply, func(c context.Context) (string, error) {
		return svc.Reply(c, text)
	})
	if err != nil {
		return o.fail(s, err)
	}
	if !o.current(s) {
		return Abandoned, nil
	}
	o.status.SetReply(reply)
	log.Info("reply received", "summary", Summarize(reply))

	clip, err := remoteCall(ctx, o, s, remote.PhaseSynthesize, func(c context.Context) (audio.Clip, error) {
		return svc.Synthesize(c, reply)
	})
	if err != nil {
		return o.fail(s, err)
	}
	if !o.transition(s, ReplyReady) {
		return Abandoned, nil
	}

	started = time.Now()
	o.speak(ctx, s, clip)
	o.metrics.RecordPhase(PhaseSpeaking, time.Since(started))
	if !o.transition(s, PlaybackDone) {
		return Abandoned, nil
	}
	return Success, nil
}

// remoteCall runs fn detached from session cancellation and bounded by the
// remote timeout. A reset while the call is in flight leaves the call to
// finish on its own; the caller then sees the session is no longer current.
func remoteCall[T any](ctx context.Context, o *Orchestrator, s *session, phase string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := trace.StartSpan(ctx, phase)
	defer span.End()

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RemoteTimeout())
	defer cancel()

	started := time.Now()
	v, err := fn(cctx)
	o.metrics.RecordPhase(phase, time.Since(started))
	if err != nil {
		err = phased(err, apperrors.Remote, phase)
		span.RecordError(err)
		o.metrics.RecordRemoteError(phase, apperrors.CodeOf(err).String())
		trace.Logger(ctx).Warn("remote call failed", "phase", phase, "session_id", s.id, "error", err)
	}
	return v, err
}

// speak plays clip on the foreground stream and pushes its loudness
// envelope to the LEDs until playback completes.
func (o *Orchestrator) speak(ctx context.Context, s *session, clip audio.Clip) {
	env := audio.Envelope(clip, LoudnessInterval)
	pb := o.speaker.Play(clip)

	ticker := time.NewTicker(LoudnessInterval)
	defer ticker.Stop()
	o.setIntent(s, leds.SpeakingAt(loudnessAt(env, 0)))
	for {
		select {
		case <-pb.Done():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.setIntent(s, leds.SpeakingAt(loudnessAt(env, int(pb.Position()/LoudnessInterval))))
		}
	}
}

func loudnessAt(env []float64, i int) float64 {
	if i < 0 || i >= len(env) {
		return 0
	}
	return env[i]
}

// cooldown restores the ambient bed. On the fail path the failure chime
// plays with the Error intent; the cancel path plays it too, with Idle.
func (o *Orchestrator) cooldown(ctx context.Context, s *session, outcome Outcome) {
	started := time.Now()
	log := trace.Logger(ctx)

	switch outcome {
	case Failed:
		o.setIntent(s, leds.Of(leds.Error))
		pb := o.speaker.Play(o.chimes.Failure)
		go func() {
			select {
			case <-pb.Done():
				o.setIntent(s, leds.Of(leds.Idle))
			case <-ctx.Done():
			}
		}()
	case Cancelled:
		o.speaker.Play(o.chimes.Failure)
	}

	from := o.gain.Load()
	err := ambient.Fade(ctx, from, o.cfg.AmbientVolumeNormal, o.cfg.FadeDuration(), func(v float64) {
		o.setGain(s, v)
	})
	if err != nil {
		log.Debug("fade interrupted", "error", err)
		return
	}

	o.mu.Lock()
	if o.active == s {
		o.gain.Store(o.cfg.AmbientVolumeNormal)
		o.intent.Set(leds.Of(leds.Idle))
		o.transitionLocked(s, FadeDone)
	}
	o.mu.Unlock()
	o.metrics.RecordPhase(PhaseCooldown, time.Since(started))
}

// cancelled takes the cancel path into Cooldown.
func (o *Orchestrator) cancelled(s *session) (Outcome, error) {
	if !o.transition(s, Cancel) {
		return Abandoned, nil
	}
	return Cancelled, nil
}

// fail takes the fail path into Cooldown.
func (o *Orchestrator) fail(s *session, err error) (Outcome, error) {
	if !o.transition(s, Fail) {
		return Abandoned, err
	}
	return Failed, err
}

// phased makes sure err carries a code and the phase it happened in.
func phased(err error, fallback apperrors.Code, phase string) error {
	if apperrors.Phase(err) != "" {
		return err
	}
	code := apperrors.CodeOf(err)
	if code == apperrors.Unknown {
		code = fallback
	}
	return apperrors.Wrap(err, code, phase+" failed").WithPhase(phase)
}
