package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/warthog618/go-gpiocdev"

	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

// GPIOTouch publishes a touch trigger on each rising edge of a capacitive
// touch sensor line.
type GPIOTouch struct {
	Chip   string
	Offset int
	Bounce time.Duration
}

func (g *GPIOTouch) Name() string { return "gpio_touch" }

// Run requests the line and holds it until ctx is done.
func (g *GPIOTouch) Run(ctx context.Context, inbox *Inbox) error {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type != gpiocdev.LineEventRisingEdge {
				return
			}
			slog.Debug("touch edge", "offset", evt.Offset, "seqno", evt.Seqno)
			inbox.Publish(NewEvent(Touch))
		}),
	}
	if g.Bounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(g.Bounce))
	}

	line, err := gpiocdev.RequestLine(g.Chip, g.Offset, opts...)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, "request touch line").
			WithMetadata("chip", g.Chip).
			WithMetadata("offset", itoa(g.Offset))
	}
	defer line.Close()
	slog.Info("gpio touch ready", "chip", g.Chip, "offset", g.Offset, "bounce", g.Bounce)

	<-ctx.Done()
	return nil
}
