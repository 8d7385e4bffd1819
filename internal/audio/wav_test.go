package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

func TestWAVRoundTrip(t *testing.T) {
	src := Tone(440, 0.5, 200*time.Millisecond, 16000)

	path, err := WriteTempWAV(src)
	if err != nil {
		t.Fatalf("WriteTempWAV: %v", err)
	}
	defer os.Remove(path)

	got, err := DecodeWAVFile(path)
	if err != nil {
		t.Fatalf("DecodeWAVFile: %v", err)
	}
	if got.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", got.SampleRate)
	}
	if len(got.Samples) != len(src.Samples) {
		t.Fatalf("len = %d, want %d", len(got.Samples), len(src.Samples))
	}
	for i := range src.Samples {
		if math.Abs(float64(got.Samples[i]-src.Samples[i])) > 1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, got.Samples[i], src.Samples[i])
		}
	}
}

func TestDecodeWAVFileErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{garbage, filepath.Join(dir, "missing.wav")} {
		if _, err := DecodeWAVFile(p); !apperrors.IsCode(err, apperrors.Config) {
			t.Errorf("DecodeWAVFile(%s) = %v, want Config error", filepath.Base(p), err)
		}
	}
}

func TestPCM16(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	raw := make([]byte, 2*len(samples))
	EncodePCM16(raw, samples)

	c := DecodePCM16(append(raw, 0x7f), 24000) // odd trailing byte ignored
	if len(c.Samples) != len(samples) {
		t.Fatalf("len = %d, want %d", len(c.Samples), len(samples))
	}
	for i, want := range samples {
		if math.Abs(float64(c.Samples[i]-want)) > 1e-3 {
			t.Errorf("sample %d = %v, want %v", i, c.Samples[i], want)
		}
	}

	EncodePCM16(raw[:2], []float32{3})
	if DecodePCM16(raw[:2], 24000).Samples[0] < 0.99 {
		t.Error("out of range samples should clamp")
	}
}
