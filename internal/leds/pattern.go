package leds

import (
	"math"
	"time"
)

// RGB is one pixel.
type RGB struct{ R, G, B uint8 }

// Frame is one full strip of pixels.
type Frame []RGB

// Render computes the frame for intent at animation time t.
func Render(in Intent, t time.Duration, count int) Frame {
	f := make(Frame, count)
	s := t.Seconds()
	switch in.Mode {
	case Idle:
		for i := range f {
			ripple := 0.5 + 0.5*math.Sin(phase(i, count)+s*0.8)
			f[i] = rgb(2+8*ripple, 22+25*ripple, 26+40*ripple)
		}
	case Trigger, Listening:
		breathe := 0.35 + 0.65*(0.5+0.5*math.Sin(s*2.2))
		f.fill(rgb(8*breathe, 45*breathe, 55*breathe))
	case Speaking:
		level := 0.0
		if in.HasLoudness {
			level = in.Loudness
		}
		amplitude := 0.2 + 0.8*level
		for i := range f {
			wave := 0.5 + 0.5*math.Sin(phase(i, count)-s*4.5)
			v := (0.25 + 0.75*wave) * amplitude
			f[i] = rgb(6*v, 40*v, 56*v)
		}
	case Error:
		blink := 0.1
		if int(s*6)%2 == 0 {
			blink = 1
		}
		f.fill(rgb(35*blink, 8*blink, 8*blink))
	default:
		f.fill(RGB{6, 10, 12})
	}
	return f
}

// Scale applies global brightness in [0,1].
func (f Frame) Scale(brightness float64) Frame {
	out := make(Frame, len(f))
	for i, p := range f {
		out[i] = rgb(float64(p.R)*brightness, float64(p.G)*brightness, float64(p.B)*brightness)
	}
	return out
}

// Level is the mean channel value of the frame, used for logging.
func (f Frame) Level() float64 {
	if len(f) == 0 {
		return 0
	}
	var sum float64
	for _, p := range f {
		sum += float64(p.R) + float64(p.G) + float64(p.B)
	}
	return sum / float64(3*len(f))
}

func (f Frame) fill(c RGB) {
	for i := range f {
		f[i] = c
	}
}

func phase(i, count int) float64 {
	return float64(i) / float64(max(1, count)) * 2 * math.Pi
}

func rgb(r, g, b float64) RGB {
	return RGB{channel(r), channel(g), channel(b)}
}

func channel(v float64) uint8 {
	return uint8(max(0, min(255, v)))
}
