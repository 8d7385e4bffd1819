package leds

import (
	"context"
	"log/slog"
	"time"
)

// Animator renders the current intent at a fixed tick rate, independent of
// session transitions.
type Animator struct {
	intent     func() Intent
	strip      Strip
	count      int
	brightness float64
	tick       time.Duration
}

func NewAnimator(intent func() Intent, strip Strip, count int, brightness float64, tick time.Duration) *Animator {
	return &Animator{intent: intent, strip: strip, count: count, brightness: brightness, tick: tick}
}

// Run ticks until ctx is done, then blanks and closes the strip.
func (a *Animator) Run(ctx context.Context) {
	t := time.NewTicker(a.tick)
	defer t.Stop()
	defer a.off()

	var elapsed time.Duration
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		elapsed += a.tick
		in := a.intent()
		f := Render(in, elapsed, a.count).Scale(a.brightness)
		if o, ok := a.strip.(intentObserver); ok {
			o.ShowIntent(in, f)
		}
		if err := a.strip.Show(f); err != nil {
			if !failing {
				slog.Warn("led strip write failed", "error", err)
			}
			failing = true
			continue
		}
		failing = false
	}
}

func (a *Animator) off() {
	_ = a.strip.Show(make(Frame, a.count))
	if err := a.strip.Close(); err != nil {
		slog.Debug("led strip close failed", "error", err)
	}
}
