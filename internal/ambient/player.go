// Package ambient mixes the looping ambient bed with at most one foreground
// voice stream. The bed gain is the only externally mutable parameter.
package ambient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/orb/internal/audio"
	"github.com/GriffinCanCode/orb/internal/syncx"
)

// staleAfter is how long without a render before the player reports itself
// as not running.
const staleAfter = time.Second

// Player implements audio.Renderer. Render runs on the output device thread;
// everything else may be called from any goroutine.
type Player struct {
	bed  []float32
	rate int
	gain *syncx.Float64

	pos int // bed read position, render thread only

	mu sync.Mutex
	fg *Playback

	lastRender atomic.Int64 // unix nano
	ticks      atomic.Uint64
	now        func() time.Time
}

// NewPlayer prepares bed for looping at rate. gain is read once per render.
func NewPlayer(bed audio.Clip, rate int, gain *syncx.Float64) *Player {
	return &Player{
		bed:  audio.Resample(bed, rate).Samples,
		rate: rate,
		gain: gain,
		now:  time.Now,
	}
}

// SampleRate is the output rate the player renders at.
func (p *Player) SampleRate() int { return p.rate }

// Render fills out with the bed at the current gain plus the foreground
// stream, if any.
func (p *Player) Render(out []float32) {
	g := float32(p.gain.Load())

	if len(p.bed) == 0 {
		clear(out)
	} else {
		for i := range out {
			out[i] = p.bed[p.pos] * g
			if p.pos++; p.pos == len(p.bed) {
				p.pos = 0
			}
		}
	}

	p.mu.Lock()
	fg := p.fg
	p.mu.Unlock()
	if fg != nil && fg.mix(out) {
		p.mu.Lock()
		if p.fg == fg {
			p.fg = nil
		}
		p.mu.Unlock()
	}

	p.ticks.Add(1)
	p.lastRender.Store(p.now().UnixNano())
}

// Running reports whether the output device has pulled audio recently.
func (p *Player) Running() bool {
	last := p.lastRender.Load()
	return last != 0 && p.now().Sub(time.Unix(0, last)) < staleAfter
}

// Ticks returns the number of render calls so far.
func (p *Player) Ticks() uint64 { return p.ticks.Load() }

// Play starts clip on the foreground stream, replacing and stopping whatever
// was playing. It returns immediately.
func (p *Player) Play(clip audio.Clip) *Playback {
	pb := newPlayback(audio.Resample(clip, p.rate))
	p.mu.Lock()
	prev := p.fg
	p.fg = pb
	p.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
	return pb
}

// StopForeground stops the foreground stream, if any.
func (p *Player) StopForeground() {
	p.mu.Lock()
	prev := p.fg
	p.fg = nil
	p.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

// Playback is one foreground clip in flight.
type Playback struct {
	samples []float32
	rate    int
	pos     atomic.Int64
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
}

func newPlayback(c audio.Clip) *Playback {
	pb := &Playback{samples: c.Samples, rate: c.SampleRate, done: make(chan struct{})}
	if len(pb.samples) == 0 {
		pb.finish()
	}
	return pb
}

// mix adds the next block into out and reports whether playback finished.
func (pb *Playback) mix(out []float32) bool {
	if pb.stopped.Load() {
		pb.finish()
		return true
	}
	pos := int(pb.pos.Load())
	n := copyAdd(out, pb.samples[min(pos, len(pb.samples)):])
	pos += n
	pb.pos.Store(int64(pos))
	if pos >= len(pb.samples) {
		pb.finish()
		return true
	}
	return false
}

func copyAdd(dst, src []float32) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
	return n
}

func (pb *Playback) finish() { pb.once.Do(func() { close(pb.done) }) }

// Done is closed when the clip has finished or was stopped.
func (pb *Playback) Done() <-chan struct{} { return pb.done }

// Stop ends playback early.
func (pb *Playback) Stop() {
	pb.stopped.Store(true)
	pb.finish()
}

// Stopped reports whether playback was ended by Stop rather than completing.
func (pb *Playback) Stopped() bool { return pb.stopped.Load() }

// Position is how much of the clip has been handed to the device.
func (pb *Playback) Position() time.Duration {
	if pb.rate <= 0 {
		return 0
	}
	return time.Duration(pb.pos.Load()) * time.Second / time.Duration(pb.rate)
}

// Duration is the total clip length.
func (pb *Playback) Duration() time.Duration {
	if pb.rate <= 0 {
		return 0
	}
	return time.Duration(len(pb.samples)) * time.Second / time.Duration(pb.rate)
}

// Wait blocks until playback is done or ctx ends.
func (pb *Playback) Wait(ctx context.Context) error {
	select {
	case <-pb.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
