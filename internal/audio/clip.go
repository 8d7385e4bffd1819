package audio

import (
	"math"
	"time"
)

// Clip is mono float32 PCM at a known sample rate.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip holds no samples.
func (c Clip) Empty() bool { return len(c.Samples) == 0 }

// RMS returns the root mean square of samples, 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// EnvelopeGain maps window RMS onto the LED loudness range.
const EnvelopeGain = 8.0

// Envelope returns one loudness value in [0,1] per interval of the clip,
// computed as min(1, RMS*EnvelopeGain). A clip shorter than one interval
// yields a single value.
func Envelope(c Clip, interval time.Duration) []float64 {
	window := int(int64(c.SampleRate) * int64(interval) / int64(time.Second))
	if window <= 0 {
		window = 1
	}
	if len(c.Samples) == 0 {
		return []float64{0}
	}
	out := make([]float64, 0, len(c.Samples)/window+1)
	for i := 0; i < len(c.Samples); i += window {
		end := min(i+window, len(c.Samples))
		out = append(out, math.Min(1, RMS(c.Samples[i:end])*EnvelopeGain))
	}
	return out
}

// Resample converts c to rate using linear interpolation.
func Resample(c Clip, rate int) Clip {
	if c.SampleRate == rate || len(c.Samples) == 0 || c.SampleRate <= 0 {
		return Clip{Samples: c.Samples, SampleRate: rate}
	}
	n := int(int64(len(c.Samples)) * int64(rate) / int64(c.SampleRate))
	out := make([]float32, n)
	step := float64(c.SampleRate) / float64(rate)
	last := len(c.Samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = c.Samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = c.Samples[j]*(1-frac) + c.Samples[j+1]*frac
	}
	return Clip{Samples: out, SampleRate: rate}
}

// Tone synthesizes a sine clip, used for simulated speech and tests.
func Tone(freq, amplitude float64, d time.Duration, rate int) Clip {
	n := int(int64(rate) * int64(d) / int64(time.Second))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return Clip{Samples: out, SampleRate: rate}
}
