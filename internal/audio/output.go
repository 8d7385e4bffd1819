package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

// Renderer fills out with the next block of mono samples. It is called from
// the output device thread, once per device period.
type Renderer interface {
	Render(out []float32)
}

// Sink is a running output that pulls from a Renderer.
type Sink interface {
	Start() error
	Close()
}

// outputPeriods is the number of device periods per second (20 ms each).
const outputPeriods = 50

// Output is the malgo playback device.
type Output struct {
	actx    *malgo.AllocatedContext
	device  *malgo.Device
	scratch []float32
	mu      sync.Mutex
}

// OpenOutput initialises the default playback device as 16-bit mono at
// sampleRate, pulling samples from r.
func OpenOutput(sampleRate int, r Renderer) (*Output, error) {
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("malgo", "message", msg)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "init audio context")
	}

	o := &Output{actx: actx}
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Playback.Format = format
	cfg.Playback.Channels = 1
	cfg.Alsa.NoMMap = 1
	cfg.PeriodSizeInFrames = uint32(sampleRate / outputPeriods)
	cfg.Periods = 3

	o.device, err = malgo.InitDevice(actx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			n := int(frameCount)
			if len(pOutput) < n*bytesPerFrame {
				n = len(pOutput) / bytesPerFrame
			}
			if cap(o.scratch) < n {
				o.scratch = make([]float32, n)
			}
			block := o.scratch[:n]
			r.Render(block)
			EncodePCM16(pOutput, block)
		},
	})
	if err != nil {
		_ = actx.Uninit()
		actx.Free()
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "init playback device")
	}
	return o, nil
}

func (o *Output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.device.Start(); err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, "start playback device")
	}
	return nil
}

func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.device != nil {
		_ = o.device.Stop()
		o.device.Uninit()
		o.device = nil
	}
	if o.actx != nil {
		_ = o.actx.Uninit()
		o.actx.Free()
		o.actx = nil
	}
}

// ClockOutput renders in real time and discards the samples. It stands in
// for a speaker in dry-run setups without an audio device, so playback
// positions and completions still advance.
type ClockOutput struct {
	r      Renderer
	period time.Duration
	block  []float32
	cancel context.CancelFunc
	done   chan struct{}
}

func NewClockOutput(sampleRate int, r Renderer) *ClockOutput {
	return &ClockOutput{
		r:      r,
		period: time.Second / outputPeriods,
		block:  make([]float32, sampleRate/outputPeriods),
	}
}

func (c *ClockOutput) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		t := time.NewTicker(c.period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.r.Render(c.block)
			}
		}
	}()
	return nil
}

func (c *ClockOutput) Close() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}
