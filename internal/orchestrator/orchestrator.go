// Package orchestrator runs the session state machine: it consumes triggers,
// drives recording, ducks and restores the ambient bed, sets the LED intent
// and sequences the speech service calls, recovering from every failure.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/orb/internal/ambient"
	"github.com/GriffinCanCode/orb/internal/audio"
	"github.com/GriffinCanCode/orb/internal/config"
	apperrors "github.com/GriffinCanCode/orb/internal/errors"
	"github.com/GriffinCanCode/orb/internal/leds"
	"github.com/GriffinCanCode/orb/internal/metrics"
	"github.com/GriffinCanCode/orb/internal/remote"
	"github.com/GriffinCanCode/orb/internal/syncx"
	"github.com/GriffinCanCode/orb/internal/trigger"
)

// LoudnessInterval is how often the speaking loudness is pushed to the LEDs.
const LoudnessInterval = 50 * time.Millisecond

// Capture starts recordings.
type Capture interface {
	Begin(ctx context.Context) (*audio.Recording, error)
}

// Speaker plays foreground audio over the ambient bed.
type Speaker interface {
	Play(clip audio.Clip) *ambient.Playback
	StopForeground()
	Running() bool
}

// Chimes are the short cues played on session start and on failure.
type Chimes struct {
	Trigger audio.Clip
	Failure audio.Clip
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Config  *config.Config
	Inbox   *trigger.Inbox
	Capture Capture
	Speaker Speaker
	Live    remote.Services
	Sim     remote.Services
	Chimes  Chimes
	Gain    *syncx.Float64
	Metrics *metrics.Metrics
	Wake    WakeSwitch // nil when no wake word source runs
}

// WakeSwitch turns wake word detection on and off at runtime.
type WakeSwitch interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// Orchestrator owns the session state. Its Run loop is the only reader of
// the trigger inbox; each accepted trigger runs as one session goroutine
// while the loop keeps draining and discarding triggers.
type Orchestrator struct {
	cfg     *config.Config
	inbox   *trigger.Inbox
	capture Capture
	speaker Speaker
	live    remote.Services
	sim     remote.Services
	chimes  Chimes
	metrics *metrics.Metrics
	status  *StatusStore
	wake    WakeSwitch

	gain       *syncx.Float64
	intent     *syncx.RWGuard[leds.Intent]
	state      atomic.Uint32
	simulation atomic.Bool

	// mu serialises state, gain and intent writes with the ownership check:
	// only the active session may write them.
	mu     sync.Mutex
	active *session
	wg     sync.WaitGroup
}

// New creates an orchestrator in the Ambient state.
func New(d Deps) *Orchestrator {
	gain := d.Gain
	if gain == nil {
		gain = syncx.NewFloat64(d.Config.AmbientVolumeNormal)
	}
	o := &Orchestrator{
		cfg:     d.Config,
		inbox:   d.Inbox,
		capture: d.Capture,
		speaker: d.Speaker,
		live:    d.Live,
		sim:     d.Sim,
		chimes:  d.Chimes,
		metrics: d.Metrics,
		status:  NewStatusStore(d.Config.DryRun.Enabled),
		gain:    gain,
		intent:  syncx.NewGuard(leds.Of(leds.Idle)),
	}
	if o.sim == nil {
		o.sim = remote.NewSimulator(d.Config.OutputSampleRate)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	gain.Store(d.Config.AmbientVolumeNormal)
	o.status.SetAmbientProbe(o.ambientRunning)
	o.status.SetOverflowCounter(d.Inbox.Overflow)
	if d.Wake != nil {
		o.wake = d.Wake
		o.status.SetWakeWord(d.Wake.IsEnabled())
	}
	return o
}

// State returns the current session state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Intent returns the current visual intent.
func (o *Orchestrator) Intent() leds.Intent { return o.intent.Get() }

// Gain returns the shared ambient gain.
func (o *Orchestrator) Gain() *syncx.Float64 { return o.gain }

// Status returns the status store.
func (o *Orchestrator) Status() *StatusStore { return o.status }

// SetSimulation switches sessions to the simulated speech services. It
// takes effect from the next session.
func (o *Orchestrator) SetSimulation(on bool) {
	o.simulation.Store(on)
	o.status.SetSimulation(on)
	slog.Info("simulation mode changed", "enabled", on)
}

// SetWakeWord enables or disables wake word triggers. It fails with a Config
// error when no wake word source is configured.
func (o *Orchestrator) SetWakeWord(on bool) error {
	if o.wake == nil {
		return apperrors.New(apperrors.Config, "wake word source not configured")
	}
	o.wake.SetEnabled(on)
	o.status.SetWakeWord(on)
	return nil
}

// Simulation reports whether simulated speech services are in use.
func (o *Orchestrator) Simulation() bool { return o.simulation.Load() }

// Trigger publishes a trigger on behalf of src, typically the control
// surface. It reports whether the event entered the inbox; acceptance is
// still decided by the Run loop.
func (o *Orchestrator) Trigger(src trigger.Source) bool {
	return o.inbox.Publish(trigger.NewEvent(src))
}

// Run consumes the inbox until ctx is done. Shutdown cancels any in-flight
// session.
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("orchestrator running", "state", o.State().String(), "stop_keyword_len", len(o.cfg.StopKeyword))
	for {
		select {
		case <-ctx.Done():
			o.abandon("shutdown")
			return nil
		case ev := <-o.inbox.Events():
			o.accept(ctx, ev)
		case phrase := <-o.inbox.Phrases():
			o.hear(phrase)
		}
	}
}

// Wait blocks until every session goroutine has returned.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// accept starts a session iff the state is Ambient; otherwise the event is
// counted and discarded.
func (o *Orchestrator) accept(ctx context.Context, ev trigger.Event) {
	o.mu.Lock()
	if o.State() != Ambient {
		state := o.State()
		o.mu.Unlock()
		o.metrics.RecordTrigger(ev.Source.String(), metrics.TriggerDropped)
		o.status.countDrop()
		slog.Debug("trigger dropped", "source", ev.Source.String(), "state", state.String(),
			"code", apperrors.ArbitrationDrop.String())
		return
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		id:       uuid.NewString(),
		source:   ev.Source,
		ctx:      sctx,
		cancel:   cancel,
		accepted: time.Now(),
	}
	o.active = s
	o.transitionLocked(s, Accept)
	o.gain.Store(o.cfg.AmbientVolumeDucked)
	o.intent.Set(leds.Of(leds.Trigger))
	o.mu.Unlock()

	o.speaker.Play(o.chimes.Trigger)
	o.metrics.RecordTrigger(ev.Source.String(), metrics.TriggerAccepted)
	slog.Info("trigger accepted", "source", ev.Source.String(), "session_id", s.id,
		"latency", time.Since(ev.Timestamp))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runSession(s)
	}()
}

// hear cancels the recording when a phrase heard mid-capture contains the
// stop keyword.
func (o *Orchestrator) hear(phrase string) {
	if o.State() != Recording || !trigger.ContainsFold(phrase, o.cfg.StopKeyword) {
		return
	}
	o.mu.Lock()
	s := o.active
	o.mu.Unlock()
	if s == nil {
		return
	}
	slog.Info("stop keyword heard during recording", "session_id", s.id)
	s.stopHeard.Store(true)
	if rec := s.rec.Load(); rec != nil {
		rec.Cancel()
	}
}

// Reset abandons any in-flight session and forces Ambient with the gain at
// exactly normal.
func (o *Orchestrator) Reset() {
	o.abandon("reset")

	o.mu.Lock()
	from := o.State()
	to, _ := Next(from, Reset)
	o.setStateLocked(to, from, "")
	o.gain.Store(o.cfg.AmbientVolumeNormal)
	o.intent.Set(leds.Of(leds.Idle))
	o.mu.Unlock()
	slog.Info("orchestrator reset", "from", from.String())
}

// abandon detaches the active session so it can no longer write shared
// state, then cancels its capture and playback. Remote calls already
// issued run to their own timeout.
func (o *Orchestrator) abandon(reason string) {
	o.mu.Lock()
	s := o.active
	o.active = nil
	o.mu.Unlock()

	if s == nil {
		return
	}
	slog.Info("session abandoned", "session_id", s.id, "reason", reason)
	s.cancel()
	if rec := s.rec.Load(); rec != nil {
		rec.Cancel()
	}
	o.speaker.StopForeground()
}

// transition applies ev for s if s is still current.
func (o *Orchestrator) transition(s *session, ev Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != s {
		return false
	}
	return o.transitionLocked(s, ev)
}

func (o *Orchestrator) transitionLocked(s *session, ev Event) bool {
	from := o.State()
	to, err := Next(from, ev)
	if err != nil {
		slog.Error("state machine rejected event", "session_id", s.id, "error", err)
		return false
	}
	o.setStateLocked(to, from, s.id)
	if to == Ambient {
		o.active = nil
	} else {
		o.intent.Set(entryIntent(to))
	}
	return true
}

func (o *Orchestrator) setStateLocked(to, from State, sessionID string) {
	o.state.Store(uint32(to))
	o.metrics.SetState(int(to))
	o.status.setState(to, from, sessionID)
	slog.Debug("state changed", "from", from.String(), "to", to.String(), "session_id", sessionID)
}

// setGain writes the ambient gain if s is still current.
func (o *Orchestrator) setGain(s *session, v float64) {
	o.mu.Lock()
	if o.active == s {
		o.gain.Store(v)
	}
	o.mu.Unlock()
}

// setIntent writes the visual intent if s is still current.
func (o *Orchestrator) setIntent(s *session, in leds.Intent) {
	o.mu.Lock()
	if o.active == s {
		o.intent.Set(in)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) current(s *session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active == s
}

func (o *Orchestrator) ambientRunning() bool { return o.speaker.Running() }

func (o *Orchestrator) services() remote.Services {
	if o.simulation.Load() {
		return o.sim
	}
	return o.live
}
