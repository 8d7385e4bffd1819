package audio

import (
	"context"
	"math"
	"sync"
	"time"
)

// Segment is a stretch of simulated input at a constant amplitude.
type Segment struct {
	Amplitude float64
	Duration  time.Duration
}

// Speech and Silence build Segments for scripted input.
func Speech(d time.Duration) Segment  { return Segment{Amplitude: 0.3, Duration: d} }
func Silence(d time.Duration) Segment { return Segment{Duration: d} }

// SimulatedSource replays a script of segments for every recording. After
// the script runs out it produces silence. With Realtime set, each block
// waits for its wall-clock duration like a real device would.
type SimulatedSource struct {
	SampleRate int
	Script     []Segment
	Realtime   bool

	mu     sync.Mutex
	opened int
}

// Opened returns how many streams have been opened.
func (s *SimulatedSource) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *SimulatedSource) Open(ctx context.Context) (Stream, error) {
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	return &simStream{src: s, ctx: ctx}, nil
}

type simStream struct {
	src *SimulatedSource
	ctx context.Context
	pos int // samples emitted
}

func (st *simStream) Read(buf []float32) error {
	rate := st.src.SampleRate
	for i := range buf {
		amp := st.amplitudeAt(st.pos)
		// 220 Hz keeps every block's RMS near amp/sqrt(2) for amp > 0.
		buf[i] = float32(amp * math.Sin(2*math.Pi*220*float64(st.pos)/float64(rate)))
		st.pos++
	}
	if st.src.Realtime {
		d := time.Duration(len(buf)) * time.Second / time.Duration(rate)
		select {
		case <-st.ctx.Done():
			return st.ctx.Err()
		case <-time.After(d):
		}
	}
	return nil
}

func (st *simStream) amplitudeAt(sample int) float64 {
	rate := int64(st.src.SampleRate)
	var start int64
	for _, seg := range st.src.Script {
		end := start + rate*int64(seg.Duration)/int64(time.Second)
		if int64(sample) < end {
			return seg.Amplitude
		}
		start = end
	}
	return 0
}

func (st *simStream) Close() error { return nil }
