package leds

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSpeakingAtClamps(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0.4, 0.4},
		{3, 1},
	}
	for _, tt := range tests {
		got := SpeakingAt(tt.in)
		if got.Loudness != tt.want || !got.HasLoudness || got.Mode != Speaking {
			t.Errorf("SpeakingAt(%v) = %+v, want loudness %v", tt.in, got, tt.want)
		}
	}
}

func TestRenderSpeakingTracksLoudness(t *testing.T) {
	quiet := Render(SpeakingAt(0), time.Second, 12)
	loud := Render(SpeakingAt(1), time.Second, 12)
	if loud.Level() <= quiet.Level() {
		t.Errorf("loud level %v should exceed quiet level %v", loud.Level(), quiet.Level())
	}
	if noSample := Render(Of(Speaking), time.Second, 12); noSample.Level() != quiet.Level() {
		t.Error("speaking without a sample should render like zero loudness")
	}
}

func TestRenderBreathingIsUniform(t *testing.T) {
	for _, m := range []Mode{Trigger, Listening} {
		f := Render(Of(m), 700*time.Millisecond, 8)
		for _, p := range f[1:] {
			if p != f[0] {
				t.Fatalf("%v frame not uniform: %v", m, f)
			}
		}
	}
}

func TestRenderErrorBlinks(t *testing.T) {
	on := Render(Of(Error), 0, 4)
	off := Render(Of(Error), 200*time.Millisecond, 4)
	if on[0].R != 35 || off[0].R != 3 {
		t.Errorf("error blink = %v / %v, want R 35 then 3", on[0], off[0])
	}
}

func TestRenderIdleDrifts(t *testing.T) {
	a := Render(Of(Idle), 0, 16)
	b := Render(Of(Idle), 2*time.Second, 16)
	if a[0] == b[0] {
		t.Error("idle pattern should drift over time")
	}
	if len(a) != 16 {
		t.Errorf("len = %d, want 16", len(a))
	}
}

func TestScale(t *testing.T) {
	f := Frame{{200, 100, 50}}.Scale(0.5)
	if f[0] != (RGB{100, 50, 25}) {
		t.Errorf("Scale = %v", f[0])
	}
}

func TestModeString(t *testing.T) {
	if Listening.String() != "listening" || Mode(42).String() != "mode(42)" {
		t.Error("unexpected mode strings")
	}
}

type recordingStrip struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (s *recordingStrip) Show(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingStrip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestAnimatorFollowsIntent(t *testing.T) {
	var mu sync.Mutex
	current := Of(Idle)
	intent := func() Intent {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	strip := &recordingStrip{}
	a := NewAnimator(intent, strip, 6, 1, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	current = Of(Error)
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	strip.mu.Lock()
	defer strip.mu.Unlock()
	if !strip.closed {
		t.Error("strip should be closed on shutdown")
	}
	if len(strip.frames) < 3 {
		t.Fatalf("got %d frames, want several", len(strip.frames))
	}
	if last := strip.frames[len(strip.frames)-1]; last.Level() != 0 {
		t.Errorf("final frame should be blank, got %v", last)
	}
	sawError := false
	for _, f := range strip.frames {
		if f[0].R > f[0].G {
			sawError = true
		}
	}
	if !sawError {
		t.Error("animator never rendered the error pattern")
	}
}

func TestLogStripLogsModeChanges(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogStrip(slog.New(slog.NewTextHandler(&buf, nil)))

	f := Render(Of(Idle), 0, 4)
	s.ShowIntent(Of(Idle), f)
	s.ShowIntent(Of(Idle), f)
	s.ShowIntent(Of(Listening), f)

	if n := strings.Count(buf.String(), "led mode"); n != 2 {
		t.Errorf("logged %d mode lines, want 2:\n%s", n, buf.String())
	}
}
