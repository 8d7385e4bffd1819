package orchestrator

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// PreviewLength is the number of characters kept in text previews.
const PreviewLength = 80

// StatusEventBuffer is the capacity of the state event channel.
const StatusEventBuffer = 64

// Snapshot is the externally visible status. It never carries full
// transcript or reply text.
type Snapshot struct {
	State                 string
	SessionID             string
	AmbientRunning        bool
	DryRun                bool
	Simulation            bool
	LastTranscriptSummary string
	LastReplySummary      string
	LastError             string
	LastErrorPhase        string
	DroppedTriggers       uint64
	InboxOverflow         uint64
	WakeWordEnabled       bool
	Sessions              map[string]uint64
	UpdatedAt             time.Time
}

// StateEvent is emitted on every state change.
type StateEvent struct {
	State     string
	Previous  string
	SessionID string
	At        time.Time
}

// StatusStore holds the status snapshot and publishes state changes.
type StatusStore struct {
	mu       sync.RWMutex
	snap     Snapshot
	ambient  func() bool
	overflow func() uint64
	eventsCh chan StateEvent
}

// NewStatusStore creates a store in the ambient state.
func NewStatusStore(dryRun bool) *StatusStore {
	return &StatusStore{
		snap: Snapshot{
			State:     Ambient.String(),
			DryRun:    dryRun,
			Sessions:  map[string]uint64{},
			UpdatedAt: time.Now(),
		},
		eventsCh: make(chan StateEvent, StatusEventBuffer),
	}
}

// SetAmbientProbe sets the function reporting whether ambient playback runs.
func (s *StatusStore) SetAmbientProbe(fn func() bool) {
	s.mu.Lock()
	s.ambient = fn
	s.mu.Unlock()
}

// SetOverflowCounter sets the function reporting inbox overflow drops.
func (s *StatusStore) SetOverflowCounter(fn func() uint64) {
	s.mu.Lock()
	s.overflow = fn
	s.mu.Unlock()
}

// Snapshot returns a copy of the current status.
func (s *StatusStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.Sessions = make(map[string]uint64, len(s.snap.Sessions))
	for k, v := range s.snap.Sessions {
		snap.Sessions[k] = v
	}
	if s.ambient != nil {
		snap.AmbientRunning = s.ambient()
	}
	if s.overflow != nil {
		snap.InboxOverflow = s.overflow()
	}
	return snap
}

func (s *StatusStore) setState(to, from State, sessionID string) {
	now := time.Now()
	s.mu.Lock()
	s.snap.State = to.String()
	s.snap.SessionID = sessionID
	s.snap.UpdatedAt = now
	s.mu.Unlock()
	s.Emit(StateEvent{State: to.String(), Previous: from.String(), SessionID: sessionID, At: now})
}

// SetTranscript records a preview of the latest transcript.
func (s *StatusStore) SetTranscript(text string) {
	s.update(func(snap *Snapshot) { snap.LastTranscriptSummary = Summarize(text) })
}

// SetReply records a preview of the latest reply.
func (s *StatusStore) SetReply(text string) {
	s.update(func(snap *Snapshot) { snap.LastReplySummary = Summarize(text) })
}

// SetError records the latest session failure.
func (s *StatusStore) SetError(err error, phase string) {
	s.update(func(snap *Snapshot) {
		snap.LastError = err.Error()
		snap.LastErrorPhase = phase
	})
}

// ClearError forgets the latest failure after a successful session.
func (s *StatusStore) ClearError() {
	s.update(func(snap *Snapshot) {
		snap.LastError = ""
		snap.LastErrorPhase = ""
	})
}

// SetSimulation records whether remote calls are served by the simulated
// services.
func (s *StatusStore) SetSimulation(on bool) {
	s.update(func(snap *Snapshot) { snap.Simulation = on })
}

// SetWakeWord records whether wake word triggers are enabled.
func (s *StatusStore) SetWakeWord(on bool) {
	s.update(func(snap *Snapshot) { snap.WakeWordEnabled = on })
}

func (s *StatusStore) countDrop() {
	s.update(func(snap *Snapshot) { snap.DroppedTriggers++ })
}

func (s *StatusStore) countSession(o Outcome) {
	s.update(func(snap *Snapshot) { snap.Sessions[o.String()]++ })
}

func (s *StatusStore) update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.snap.UpdatedAt = time.Now()
	s.mu.Unlock()
}

// Events returns the channel of state changes.
func (s *StatusStore) Events() <-chan StateEvent {
	return s.eventsCh
}

// Emit sends a state event without blocking; events are dropped when no
// one is reading.
func (s *StatusStore) Emit(ev StateEvent) {
	select {
	case s.eventsCh <- ev:
	default:
	}
}

// Summarize returns a whitespace-normalised preview of at most
// PreviewLength characters followed by the original length.
func Summarize(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	preview := normalized
	if utf8.RuneCountInString(normalized) > PreviewLength {
		preview = string([]rune(normalized)[:PreviewLength]) + "…"
	}
	return fmt.Sprintf("%s (chars=%d)", preview, utf8.RuneCountInString(text))
}
