package audio

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	apperrors "github.com/GriffinCanCode/orb/internal/errors"
)

const pcm16Max = 32767

// DecodeWAVFile loads a WAV asset as a mono clip. Multi-channel files are
// downmixed by averaging.
func DecodeWAVFile(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, apperrors.Wrap(err, apperrors.Config, "open audio asset").WithMetadata("path", path)
	}
	defer f.Close()

	clip, err := DecodeWAV(f)
	if err != nil {
		return Clip{}, apperrors.Wrap(err, apperrors.Config, "decode audio asset").WithMetadata("path", path)
	}
	return clip, nil
}

// DecodeWAV reads a PCM WAV stream into a mono clip.
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, apperrors.New(apperrors.Config, "not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, err
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	scale := float32(math.Pow(2, float64(dec.BitDepth)-1))
	if scale <= 0 {
		scale = pcm16Max + 1
	}

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float32(channels)
	}
	return Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// EncodeWAV writes c as 16-bit mono PCM.
func EncodeWAV(w io.WriteSeeker, c Clip) error {
	enc := wav.NewEncoder(w, c.SampleRate, 16, 1, 1)
	data := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		data[i] = int(clamp(s) * pcm16Max)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: c.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// WriteTempWAV encodes c into a new temporary file and returns its path.
// The caller owns the file and must remove it.
func WriteTempWAV(c Clip) (string, error) {
	f, err := os.CreateTemp("", "orb_record_*.wav")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := EncodeWAV(f, c); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// DecodePCM16 converts raw little-endian signed 16-bit mono PCM to a clip.
// A trailing odd byte is ignored.
func DecodePCM16(raw []byte, rate int) Clip {
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float32(v) / (pcm16Max + 1)
	}
	return Clip{Samples: samples, SampleRate: rate}
}

// EncodePCM16 writes samples as little-endian signed 16-bit PCM into dst,
// which must hold 2*len(samples) bytes.
func EncodePCM16(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(int16(clamp(s)*pcm16Max)))
	}
}

func clamp(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}
