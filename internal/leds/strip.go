package leds

import "log/slog"

// Strip is the pixel driver boundary.
type Strip interface {
	Show(Frame) error
	Close() error
}

// NopStrip discards frames.
type NopStrip struct{}

func (NopStrip) Show(Frame) error { return nil }
func (NopStrip) Close() error     { return nil }

// LogStrip logs mode changes instead of driving pixels. Used in dry-run.
type LogStrip struct {
	log  *slog.Logger
	last Mode
	seen bool
}

func NewLogStrip(log *slog.Logger) *LogStrip {
	if log == nil {
		log = slog.Default()
	}
	return &LogStrip{log: log}
}

// ShowIntent records the intent behind the next frame.
func (s *LogStrip) ShowIntent(in Intent, f Frame) {
	if s.seen && in.Mode == s.last {
		return
	}
	s.seen, s.last = true, in.Mode
	s.log.Info("led mode", "mode", in.Mode.String(), "level", f.Level())
}

func (s *LogStrip) Show(Frame) error { return nil }
func (s *LogStrip) Close() error {
	s.log.Info("led strip off")
	return nil
}

// intentObserver is implemented by strips that want the intent alongside
// each frame.
type intentObserver interface {
	ShowIntent(Intent, Frame)
}
