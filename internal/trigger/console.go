package trigger

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
)

// Console reads lines from r. An empty line (ENTER) is a touch when touch
// is enabled; any other line is a heard phrase, passed to the wake listener
// when one is set and to the inbox otherwise.
type Console struct {
	r     io.Reader
	touch bool
	wake  *WakeListener
}

func NewConsole(r io.Reader, touch bool, wake *WakeListener) *Console {
	return &Console{r: r, touch: touch, wake: wake}
}

func (c *Console) Name() string { return "console" }

// Run reads until ctx is done or r is exhausted.
func (c *Console) Run(ctx context.Context, inbox *Inbox) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("console input failed", "error", err)
		}
	}()

	if c.touch {
		slog.Info("console input ready: press ENTER to simulate touch")
	}
	if c.wake != nil {
		slog.Info("console input ready: type a phrase to simulate speech")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			c.handle(ctx, strings.TrimSpace(line), inbox)
		}
	}
}

func (c *Console) handle(ctx context.Context, line string, inbox *Inbox) {
	switch {
	case line == "":
		if c.touch {
			inbox.Publish(NewEvent(Touch))
		}
	case c.wake != nil:
		c.wake.Hear(ctx, line, inbox)
	default:
		inbox.Hear(line)
	}
}
