package audio

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

// ErrRecordingDone is returned by Recording.Next once the recording has
// completed for any reason.
var ErrRecordingDone = errors.New("recording done")

// StopReason explains why a recording completed.
type StopReason uint8

const (
	StopNone StopReason = iota
	StopSilence
	StopMaxDuration
	StopCancelled
	StopError
)

func (r StopReason) String() string {
	return [...]string{"none", "silence", "max_duration", "cancelled", "error"}[r]
}

// Calibration EMA weights applied per frame while calibrating.
const (
	calibrationKeep = 0.9
	calibrationNew  = 0.1
)

// MinThreshold floors a calibrated threshold so a digitally silent window
// still yields a usable one.
const MinThreshold = 1e-4

// RecorderConfig bounds a recording. Cutoffs are evaluated per frame, so a
// duration that is not a whole number of frames completes on the next frame
// boundary.
type RecorderConfig struct {
	SampleRate         int
	FrameSize          int           // samples per frame
	SilenceDuration    time.Duration // continuous silence that ends a recording
	MaxDuration        time.Duration // hard cutoff
	Threshold          float64       // fixed RMS threshold; 0 enables calibration
	Multiplier         float64       // applied to the calibrated noise floor
	CalibrationSeconds float64
}

// Frame is one block of captured samples with its loudness.
type Frame struct {
	Samples []float32
	RMS     float64
	Silent  bool
	Offset  time.Duration // position of the frame end within the recording
}

// Result is the outcome of a completed recording.
type Result struct {
	Clip    Clip
	Reason  StopReason
	Elapsed time.Duration
	Err     error // set when Reason is StopError
}

// Recorder starts voice-activity controlled recordings from a Source.
type Recorder struct {
	src Source
	cfg RecorderConfig
}

// NewRecorder returns a Recorder reading from src. Every Begin opens a fresh
// stream.
func NewRecorder(src Source, cfg RecorderConfig) *Recorder {
	return &Recorder{src: src, cfg: cfg}
}

// Begin opens the source and returns a handle yielding frames until the
// recording completes. The handle is single-use.
func (r *Recorder) Begin(ctx context.Context) (*Recording, error) {
	stream, err := r.src.Open(ctx)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.Capture, "open capture stream")
	}
	rate := int64(r.cfg.SampleRate)
	rec := &Recording{
		ctx:            ctx,
		stream:         stream,
		cfg:            r.cfg,
		buf:            make([]float32, r.cfg.FrameSize),
		silenceSamples: samplesFor(r.cfg.SilenceDuration, rate),
		maxSamples:     samplesFor(r.cfg.MaxDuration, rate),
		threshold:      r.cfg.Threshold,
	}
	if r.cfg.Threshold <= 0 {
		rec.calibSamples = int64(math.Round(r.cfg.CalibrationSeconds * float64(rate)))
	}
	return rec, nil
}

func samplesFor(d time.Duration, rate int64) int64 {
	return int64(math.Round(d.Seconds() * float64(rate)))
}

// Recording is a bounded, cancellable sequence of frames.
// Next is called from a single goroutine; Cancel is safe from any.
type Recording struct {
	ctx    context.Context
	stream Stream
	cfg    RecorderConfig
	buf    []float32

	cancelled atomic.Bool
	closeOnce sync.Once

	samples        []float32
	elapsed        int64 // samples read
	silentRun      int64 // consecutive silent samples
	silenceSamples int64
	maxSamples     int64
	calibSamples   int64
	threshold      float64
	noiseFloor     float64
	calibrated     bool

	done   bool
	reason StopReason
	err    error
}

// Cancel requests completion; it takes effect before the next frame read.
func (r *Recording) Cancel() { r.cancelled.Store(true) }

// Next reads and classifies the next frame. The frame that completes the
// recording is returned normally; subsequent calls return ErrRecordingDone.
func (r *Recording) Next() (Frame, error) {
	if r.done {
		return Frame{}, ErrRecordingDone
	}
	if r.cancelled.Load() || r.ctx.Err() != nil {
		r.finish(StopCancelled, nil)
		return Frame{}, ErrRecordingDone
	}

	if err := r.stream.Read(r.buf); err != nil {
		if r.ctx.Err() != nil {
			r.finish(StopCancelled, nil)
			return Frame{}, ErrRecordingDone
		}
		if _, ok := apperrors.As(err); !ok {
			err = apperrors.Wrap(err, apperrors.Capture, "read capture stream")
		}
		r.finish(StopError, err)
		return Frame{}, err
	}

	block := append([]float32(nil), r.buf...)
	r.samples = append(r.samples, block...)
	r.elapsed += int64(len(block))
	rms := RMS(block)

	f := Frame{Samples: block, RMS: rms, Offset: r.offset()}
	if r.calibrating(rms) {
		return f, nil
	}

	f.Silent = rms < r.threshold
	if f.Silent {
		r.silentRun += int64(len(block))
	} else {
		r.silentRun = 0
	}

	switch {
	case r.silentRun >= r.silenceSamples:
		r.finish(StopSilence, nil)
	case r.elapsed >= r.maxSamples:
		r.finish(StopMaxDuration, nil)
	}
	return f, nil
}

// calibrating folds rms into the noise floor while inside the calibration
// window and reports whether the frame belongs to it. The hard cutoff still
// applies during calibration.
func (r *Recording) calibrating(rms float64) bool {
	if r.calibrated || r.cfg.Threshold > 0 {
		return false
	}
	// Frames the running floor already classes as voiced are speech, not
	// room tone, and never raise it.
	switch {
	case r.elapsed == int64(len(r.buf)):
		r.noiseFloor = rms
	case rms < r.noiseFloor*r.cfg.Multiplier:
		r.noiseFloor = calibrationKeep*r.noiseFloor + calibrationNew*rms
	}
	if r.elapsed < r.calibSamples {
		if r.elapsed >= r.maxSamples {
			r.finish(StopMaxDuration, nil)
		}
		return true
	}
	r.calibrated = true
	r.threshold = max(r.noiseFloor*r.cfg.Multiplier, MinThreshold)
	slog.Debug("silence threshold calibrated", "noise_floor", r.noiseFloor, "threshold", r.threshold)
	if r.elapsed >= r.maxSamples {
		r.finish(StopMaxDuration, nil)
	}
	return true
}

// Run drains the recording and returns its result.
func (r *Recording) Run() Result {
	for {
		if _, err := r.Next(); err != nil {
			return r.Result()
		}
	}
}

// Result returns the collected audio and stop reason. Before completion the
// reason is StopNone.
func (r *Recording) Result() Result {
	return Result{
		Clip:    Clip{Samples: r.samples, SampleRate: r.cfg.SampleRate},
		Reason:  r.reason,
		Elapsed: r.offset(),
		Err:     r.err,
	}
}

func (r *Recording) offset() time.Duration {
	return time.Duration(r.elapsed) * time.Second / time.Duration(r.cfg.SampleRate)
}

func (r *Recording) finish(reason StopReason, err error) {
	r.done = true
	r.reason = reason
	r.err = err
	r.closeOnce.Do(func() {
		if cerr := r.stream.Close(); cerr != nil {
			slog.Debug("capture stream close failed", "error", cerr)
		}
	})
}
