// Package audio covers everything between the microphone and the speaker:
// sample math, WAV assets, voice-activity controlled recording and the
// playback device.
package audio

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

// Stream delivers consecutive fixed-size blocks of mono samples.
type Stream interface {
	Read(buf []float32) error
	Close() error
}

// Source opens a fresh Stream for each recording.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Microphone is a portaudio-backed Source.
type Microphone struct {
	sampleRate int
	blocksize  int
	mu         sync.Mutex
	closed     bool
}

// NewMicrophone initialises portaudio. Close releases it.
func NewMicrophone(sampleRate, blocksize int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Capture, "initialise portaudio")
	}
	return &Microphone{sampleRate: sampleRate, blocksize: blocksize}, nil
}

// Open starts an input stream on the preferred capture device.
func (m *Microphone) Open(_ context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, apperrors.New(apperrors.Capture, "microphone closed")
	}

	dev, err := m.pickDevice()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Capture, "select input device")
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(m.sampleRate),
		FramesPerBuffer: m.blocksize,
	}
	buf := make([]float32, m.blocksize)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Capture, "open input stream").WithMetadata("device", dev.Name)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, apperrors.Wrap(err, apperrors.Capture, "start input stream").WithMetadata("device", dev.Name)
	}
	slog.Debug("microphone stream opened", "device", dev.Name, "sample_rate", m.sampleRate)
	return &micStream{stream: stream, buf: buf, device: dev.Name}, nil
}

// Close terminates portaudio; streams must already be closed.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return portaudio.Terminate()
}

func (m *Microphone) pickDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var best *portaudio.DeviceInfo
	bestRank := 0
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		if r := rankInput(dev.Name); r > bestRank {
			best, bestRank = dev, r
		}
	}
	if best != nil {
		return best, nil
	}
	return portaudio.DefaultInputDevice()
}

// rankInput scores a device name for use as the orb microphone. Zero means
// never pick it by name; loopback and monitor devices capture our own output.
func rankInput(name string) int {
	n := strings.ToLower(name)
	for _, kw := range []string{"loopback", "monitor", "blackhole", "hdmi"} {
		if strings.Contains(n, kw) {
			return 0
		}
	}
	switch {
	case strings.Contains(n, "respeaker"), strings.Contains(n, "usb"):
		return 3
	case strings.Contains(n, "mic"):
		return 2
	case strings.Contains(n, "input"):
		return 1
	}
	return 0
}

type micStream struct {
	stream    *portaudio.Stream
	buf       []float32
	device    string
	closeOnce sync.Once
}

func (s *micStream) Read(dst []float32) error {
	if err := s.stream.Read(); err != nil {
		// Input overflow only means samples were lost; the block is still usable.
		if err != portaudio.InputOverflowed {
			return apperrors.Wrap(err, apperrors.Capture, "read input stream").WithMetadata("device", s.device)
		}
	}
	copy(dst, s.buf)
	return nil
}

func (s *micStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.stream.Stop()
		err = s.stream.Close()
	})
	return err
}
