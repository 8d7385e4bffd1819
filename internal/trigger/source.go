package trigger

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/GriffinCanCode/orb/internal/config"
)

// Listener is a long-lived trigger source.
type Listener interface {
	Name() string
	Run(ctx context.Context, inbox *Inbox) error
}

// Plan is the set of trigger sources the configuration enables.
type Plan struct {
	Touch bool
	Wake  bool
}

// PlanFor applies the source selection rule: wake word disabled means touch
// only; wake word enabled without allow_touch means wake only; otherwise both.
func PlanFor(cfg *config.Config) Plan {
	return Plan{Touch: cfg.TouchEnabled(), Wake: cfg.WakeWord.Enabled}
}

// Build returns the listeners for cfg. Console input comes from stdin. The
// returned WakeListener is nil when the wake word is disabled.
func Build(cfg *config.Config, stdin io.Reader) ([]Listener, *WakeListener) {
	plan := PlanFor(cfg)

	var wake *WakeListener
	if plan.Wake {
		wake = NewWakeListener(KeywordEngine{Keyword: cfg.WakeWord.Keyword}, cfg.WakeCooldown(), true)
	}

	var ls []Listener
	if cfg.DryRun.Enabled {
		if plan.Touch || wake != nil {
			ls = append(ls, NewConsole(stdin, plan.Touch, wake))
		}
		return ls, wake
	}

	if plan.Touch {
		ls = append(ls, &GPIOTouch{Chip: cfg.GPIO.Chip, Offset: cfg.GPIO.PinTouch, Bounce: cfg.TouchBounce()})
	}
	if wake != nil {
		// The mock engine hears phrases typed on the console.
		ls = append(ls, NewConsole(stdin, false, wake))
	}
	return ls, wake
}

// RunAll runs every listener until ctx is done. A listener that fails is
// logged and does not stop the others.
func RunAll(ctx context.Context, inbox *Inbox, ls []Listener) {
	var wg sync.WaitGroup
	for _, l := range ls {
		wg.Add(1)
		go func(l Listener) {
			defer wg.Done()
			slog.Info("trigger source started", "source", l.Name())
			if err := l.Run(ctx, inbox); err != nil {
				slog.Error("trigger source stopped", "source", l.Name(), "error", err)
			}
		}(l)
	}
	wg.Wait()
}

func itoa(i int) string { return strconv.Itoa(i) }
