package audio

import (
	"math"
	"testing"
	"time"
)

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", []float32{0, 0, 0, 0}, 0},
		{"constant", []float32{0.5, -0.5, 0.5, -0.5}, 0.5},
		{"single", []float32{-1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.samples); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClipDuration(t *testing.T) {
	c := Clip{Samples: make([]float32, 24000), SampleRate: 16000}
	if c.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", c.Duration())
	}
	if (Clip{}).Duration() != 0 {
		t.Error("zero clip should have zero duration")
	}
}

func TestEnvelope(t *testing.T) {
	loud := Clip{Samples: make([]float32, 1600), SampleRate: 16000}
	for i := range loud.Samples {
		loud.Samples[i] = 0.5 // rms*8 clamps to 1
	}
	quiet := Clip{Samples: make([]float32, 800), SampleRate: 16000}
	for i := range quiet.Samples {
		quiet.Samples[i] = 0.05
	}
	c := Clip{Samples: append(loud.Samples, quiet.Samples...), SampleRate: 16000}

	env := Envelope(c, 50*time.Millisecond)
	if len(env) != 3 {
		t.Fatalf("len(env) = %d, want 3", len(env))
	}
	if env[0] != 1 || env[1] != 1 {
		t.Errorf("loud windows = %v, want clamped to 1", env[:2])
	}
	if math.Abs(env[2]-0.4) > 1e-6 {
		t.Errorf("quiet window = %v, want 0.4", env[2])
	}

	if got := Envelope(Clip{SampleRate: 16000}, 50*time.Millisecond); len(got) != 1 {
		t.Errorf("empty clip envelope = %v, want one value", got)
	}
}

func TestResample(t *testing.T) {
	src := Clip{Samples: []float32{0, 1, 0, -1}, SampleRate: 8000}
	up := Resample(src, 16000)
	if up.SampleRate != 16000 || len(up.Samples) != 8 {
		t.Fatalf("Resample = %d samples @ %d, want 8 @ 16000", len(up.Samples), up.SampleRate)
	}
	if up.Samples[1] != 0.5 {
		t.Errorf("interpolated sample = %v, want 0.5", up.Samples[1])
	}

	same := Resample(src, 8000)
	if len(same.Samples) != 4 {
		t.Error("same-rate resample should not change length")
	}
}

func TestTone(t *testing.T) {
	c := Tone(440, 0.5, 100*time.Millisecond, 16000)
	if len(c.Samples) != 1600 {
		t.Fatalf("len = %d, want 1600", len(c.Samples))
	}
	if rms := RMS(c.Samples); math.Abs(rms-0.5/math.Sqrt2) > 0.01 {
		t.Errorf("RMS = %v, want ~%v", rms, 0.5/math.Sqrt2)
	}
}
