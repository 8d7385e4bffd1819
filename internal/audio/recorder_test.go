package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

const (
	testRate  = 16000
	testFrame = 800 // 50ms
)

func fixedConfig(silence, max time.Duration) RecorderConfig {
	return RecorderConfig{
		SampleRate:      testRate,
		FrameSize:       testFrame,
		SilenceDuration: silence,
		MaxDuration:     max,
		Threshold:       0.05,
	}
}

func record(t *testing.T, cfg RecorderConfig, script ...Segment) Result {
	t.Helper()
	rec := NewRecorder(&SimulatedSource{SampleRate: testRate, Script: script}, cfg)
	r, err := rec.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return r.Run()
}

func TestRecorderSilenceCutoffAfterSpeech(t *testing.T) {
	res := record(t, fixedConfig(1500*time.Millisecond, 10*time.Second),
		Speech(2*time.Second), Silence(30*time.Second))

	if res.Reason != StopSilence {
		t.Fatalf("Reason = %v, want silence", res.Reason)
	}
	if res.Elapsed != 3500*time.Millisecond {
		t.Errorf("Elapsed = %v, want 3.5s", res.Elapsed)
	}
	if res.Clip.Duration() != 3500*time.Millisecond {
		t.Errorf("clip duration = %v, want 3.5s", res.Clip.Duration())
	}
}

func TestRecorderSilenceFromStart(t *testing.T) {
	res := record(t, fixedConfig(time.Second, 10*time.Second), Silence(time.Minute))

	if res.Reason != StopSilence {
		t.Fatalf("Reason = %v, want silence", res.Reason)
	}
	if res.Elapsed != time.Second {
		t.Errorf("Elapsed = %v, want 1s", res.Elapsed)
	}
}

func TestRecorderSilenceTimerResets(t *testing.T) {
	// 1s silence, speech, 1s silence, speech: never 1.5s continuous until the end.
	res := record(t, fixedConfig(1500*time.Millisecond, 10*time.Second),
		Silence(time.Second), Speech(500*time.Millisecond),
		Silence(time.Second), Speech(500*time.Millisecond))

	if res.Reason != StopSilence {
		t.Fatalf("Reason = %v, want silence", res.Reason)
	}
	if res.Elapsed != 4500*time.Millisecond {
		t.Errorf("Elapsed = %v, want 4.5s", res.Elapsed)
	}
}

func TestRecorderMaxDuration(t *testing.T) {
	res := record(t, fixedConfig(time.Second, 3*time.Second), Speech(time.Minute))

	if res.Reason != StopMaxDuration {
		t.Fatalf("Reason = %v, want max_duration", res.Reason)
	}
	if res.Elapsed != 3*time.Second {
		t.Errorf("Elapsed = %v, want 3s", res.Elapsed)
	}
}

func TestRecorderCalibratedThreshold(t *testing.T) {
	cfg := fixedConfig(time.Second, 10*time.Second)
	cfg.Threshold = 0
	cfg.Multiplier = 1.8
	cfg.CalibrationSeconds = 1

	// Quiet room tone for calibration, then speech, then room tone again.
	room := Segment{Amplitude: 0.01, Duration: time.Second}
	res := record(t, cfg, room, Speech(time.Second), Segment{Amplitude: 0.01, Duration: time.Minute})

	if res.Reason != StopSilence {
		t.Fatalf("Reason = %v, want silence", res.Reason)
	}
	if res.Elapsed != 3*time.Second {
		t.Errorf("Elapsed = %v, want 3s", res.Elapsed)
	}
}

func TestRecorderCalibrationOverDigitalSilence(t *testing.T) {
	cfg := fixedConfig(1500*time.Millisecond, 10*time.Second)
	cfg.Threshold = 0
	cfg.Multiplier = 1.8
	cfg.CalibrationSeconds = 1

	rec := NewRecorder(&SimulatedSource{SampleRate: testRate, Script: []Segment{Silence(time.Minute)}}, cfg)
	r, err := rec.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	res := r.Run()

	if res.Reason != StopSilence {
		t.Fatalf("Reason = %v, want silence", res.Reason)
	}
	if res.Elapsed != 2500*time.Millisecond {
		t.Errorf("Elapsed = %v, want 2.5s", res.Elapsed)
	}
	if r.threshold != MinThreshold {
		t.Errorf("threshold = %v, want %v", r.threshold, MinThreshold)
	}
}

func TestRecorderCalibrationIgnoresSpeech(t *testing.T) {
	cfg := fixedConfig(1500*time.Millisecond, 10*time.Second)
	cfg.Threshold = 0
	cfg.Multiplier = 1.8
	cfg.CalibrationSeconds = 1

	// Speech starts inside the calibration window and must stay voiced.
	res := record(t, cfg, Silence(500*time.Millisecond), Speech(2*time.Second), Silence(time.Minute))

	if res.Reason != StopSilence {
		t.Fatalf("Reason = %v, want silence", res.Reason)
	}
	if res.Elapsed != 4*time.Second {
		t.Errorf("Elapsed = %v, want 4s", res.Elapsed)
	}
}

func TestRecorderCutoffQuantisedToFrames(t *testing.T) {
	cfg := fixedConfig(time.Second, 3*time.Second)
	cfg.FrameSize = 1024

	res := record(t, cfg, Speech(time.Minute))

	if res.Reason != StopMaxDuration {
		t.Fatalf("Reason = %v, want max_duration", res.Reason)
	}
	// 48000 samples round up to 47 frames of 1024.
	if want := 47 * 1024 * time.Second / testRate; res.Elapsed != want {
		t.Errorf("Elapsed = %v, want %v", res.Elapsed, want)
	}
}

func TestRecordingCancel(t *testing.T) {
	rec := NewRecorder(&SimulatedSource{SampleRate: testRate, Script: []Segment{Speech(time.Minute)}},
		fixedConfig(time.Second, 30*time.Second))
	r, err := rec.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := r.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	r.Cancel()

	if _, err := r.Next(); !errors.Is(err, ErrRecordingDone) {
		t.Fatalf("Next after cancel = %v, want ErrRecordingDone", err)
	}
	res := r.Result()
	if res.Reason != StopCancelled {
		t.Errorf("Reason = %v, want cancelled", res.Reason)
	}
	if res.Elapsed != 500*time.Millisecond {
		t.Errorf("Elapsed = %v, want 500ms", res.Elapsed)
	}
	if _, err := r.Next(); !errors.Is(err, ErrRecordingDone) {
		t.Error("handle must not be reusable")
	}
}

func TestRecordingContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := NewRecorder(&SimulatedSource{SampleRate: testRate, Realtime: true, Script: []Segment{Speech(time.Minute)}},
		fixedConfig(time.Second, 30*time.Second))
	r, err := rec.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	go func() {
		time.Sleep(120 * time.Millisecond)
		cancel()
	}()

	done := make(chan Result, 1)
	go func() { done <- r.Run() }()

	select {
	case res := <-done:
		if res.Reason != StopCancelled {
			t.Errorf("Reason = %v, want cancelled", res.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recording did not stop after context cancel")
	}
}

type failingStream struct{ reads int }

func (f *failingStream) Read(buf []float32) error {
	f.reads++
	if f.reads > 2 {
		return errors.New("device unplugged")
	}
	return nil
}
func (f *failingStream) Close() error { return nil }

type streamSource struct{ s Stream }

func (s streamSource) Open(context.Context) (Stream, error) { return s.s, nil }

func TestRecordingStreamError(t *testing.T) {
	rec := NewRecorder(streamSource{&failingStream{}}, fixedConfig(time.Second, 10*time.Second))
	r, err := rec.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	res := r.Run()
	if res.Reason != StopError {
		t.Fatalf("Reason = %v, want error", res.Reason)
	}
	if !apperrors.IsCode(res.Err, apperrors.Capture) {
		t.Errorf("Err = %v, want Capture error", res.Err)
	}
}

type brokenSource struct{}

func (brokenSource) Open(context.Context) (Stream, error) { return nil, errors.New("no such device") }

func TestBeginOpenError(t *testing.T) {
	_, err := NewRecorder(brokenSource{}, fixedConfig(time.Second, 10*time.Second)).Begin(context.Background())
	if !apperrors.IsCode(err, apperrors.Capture) {
		t.Fatalf("Begin = %v, want Capture error", err)
	}
}

func TestStopReasonString(t *testing.T) {
	if StopSilence.String() != "silence" || StopMaxDuration.String() != "max_duration" {
		t.Error("unexpected StopReason strings")
	}
}
