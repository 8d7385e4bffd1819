package trigger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Engine decides whether a heard phrase contains the wake word.
type Engine interface {
	Detect(ctx context.Context, phrase string) (bool, error)
}

// KeywordEngine matches the keyword as a case-insensitive substring. It is
// the "mock" engine: phrases come from the console rather than a model.
type KeywordEngine struct {
	Keyword string
}

func (e KeywordEngine) Detect(_ context.Context, phrase string) (bool, error) {
	return ContainsFold(phrase, e.Keyword), nil
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// WakeListener turns heard phrases into triggers, with a refractory cooldown so
// one utterance does not fire twice.
type WakeListener struct {
	engine   Engine
	mu       sync.Mutex
	enabled  bool
	cooldown time.Duration
	lastTime time.Time
	now      func() time.Time
}

func NewWakeListener(engine Engine, cooldown time.Duration, enabled bool) *WakeListener {
	return &WakeListener{engine: engine, enabled: enabled, cooldown: cooldown, now: time.Now}
}

// Check reports whether phrase should fire a wake-word trigger.
func (w *WakeListener) Check(ctx context.Context, phrase string) bool {
	if !w.IsEnabled() {
		return false
	}

	w.mu.Lock()
	if !w.lastTime.IsZero() && w.now().Sub(w.lastTime) < w.cooldown {
		w.mu.Unlock()
		return false
	}
	w.mu.Unlock()

	hit, err := w.engine.Detect(ctx, phrase)
	if err != nil {
		slog.Warn("wake word engine failed", "error", err)
		return false
	}
	if !hit {
		return false
	}

	w.mu.Lock()
	w.lastTime = w.now()
	w.mu.Unlock()
	slog.Info("wake word detected")
	return true
}

// Hear forwards phrase to the inbox and publishes a trigger when it
// contains the wake word.
func (w *WakeListener) Hear(ctx context.Context, phrase string, inbox *Inbox) {
	inbox.Hear(phrase)
	if w.Check(ctx, phrase) {
		inbox.Publish(NewEvent(WakeWord))
	}
}

// SetEnabled switches detection at runtime; phrases still reach the inbox
// while disabled so the stop keyword keeps working.
func (w *WakeListener) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.enabled = enabled
	w.mu.Unlock()
	slog.Info("wake word state changed", "enabled", enabled)
}

// IsEnabled reports whether heard phrases can fire triggers.
func (w *WakeListener) IsEnabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}
