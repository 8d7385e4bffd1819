package ambient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/orb/internal/syncx"
)

func TestFadeReachesTargetExactly(t *testing.T) {
	tests := []struct {
		name          string
		start, target float64
		d             time.Duration
	}{
		{"up", 0.15, 0.6, 200 * time.Millisecond},
		{"down", 0.9, 0.1, 120 * time.Millisecond},
		{"instant", 0.15, 0.6, 0},
		{"no-op", 0.6, 0.6, 200 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gain := syncx.NewFloat64(tt.start)
			if err := Fade(context.Background(), tt.start, tt.target, tt.d, gain.Store); err != nil {
				t.Fatalf("Fade: %v", err)
			}
			if got := gain.Load(); got != tt.target {
				t.Errorf("gain = %v, want exactly %v", got, tt.target)
			}
		})
	}
}

func TestFadeSteps(t *testing.T) {
	var writes []float64
	if err := Fade(context.Background(), 0, 1, 200*time.Millisecond, func(v float64) {
		writes = append(writes, v)
	}); err != nil {
		t.Fatalf("Fade: %v", err)
	}

	if len(writes) != 4 {
		t.Fatalf("writes = %v, want 4 steps", writes)
	}
	for i := 1; i < len(writes); i++ {
		if writes[i] <= writes[i-1] {
			t.Errorf("fade not monotonic: %v", writes)
		}
	}
	if writes[len(writes)-1] != 1 {
		t.Errorf("last write = %v, want 1", writes[len(writes)-1])
	}
}

func TestFadeCancelled(t *testing.T) {
	gain := syncx.NewFloat64(0.1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Fade(ctx, 0.1, 0.7, time.Second, gain.Store)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fade = %v, want context.Canceled", err)
	}
	if gain.Load() != 0.1 {
		t.Error("cancelled fade should not write")
	}
}
