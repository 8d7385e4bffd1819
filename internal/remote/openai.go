package remote

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/GriffinCanCode/orb/internal/audio"
	apperrors "github.com/GriffinCanCode/orb/internal/errors"
	"github.com/GriffinCanCode/orb/internal/resilience"
	"github.com/GriffinCanCode/orb/internal/trace"
)

// Reply generation parameters.
const (
	ReplyTemperature = 0.5
	ReplyMaxTokens   = 140

	// SpeechSampleRate is the rate of raw PCM returned by the speech endpoint.
	SpeechSampleRate = 24000
)

// OpenAIConfig configures the OpenAI-backed services.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	ChatModel       string
	TTSModel        string
	Voice           string
	SystemPrompt    string
	Timeout         time.Duration
	Breaker         resilience.Config
}

// OpenAI implements Services with the OpenAI API.
type OpenAI struct {
	client  *openai.Client
	cfg     OpenAIConfig
	breaker *resilience.Breaker
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return &OpenAI{
		client:  openai.NewClientWithConfig(oc),
		cfg:     cfg,
		breaker: resilience.New(cfg.Breaker),
	}
}

// Breaker exposes the circuit breaker for state hooks.
func (o *OpenAI) Breaker() *resilience.Breaker { return o.breaker }

// Transcribe uploads clip as a temporary WAV file, which is always removed.
func (o *OpenAI) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	ctx, span := trace.StartSpan(ctx, "remote.transcribe")
	defer span.End()
	span.SetAttr("audio_seconds", clip.Duration().Seconds())

	path, err := audio.WriteTempWAV(clip)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Capture, "write recording").WithPhase(PhaseTranscribe)
	}
	defer removeTemp(path)

	text, err := call(ctx, o, PhaseTranscribe, func(ctx context.Context) (string, error) {
		resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    o.cfg.TranscribeModel,
			FilePath: path,
		})
		return resp.Text, err
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Reply asks the chat model for a short spoken answer to text.
func (o *OpenAI) Reply(ctx context.Context, text string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "remote.reply")
	defer span.End()

	reply, err := call(ctx, o, PhaseReply, func(ctx context.Context) (string, error) {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.cfg.ChatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: o.cfg.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
			Temperature: ReplyTemperature,
			MaxTokens:   ReplyMaxTokens,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", apperrors.New(apperrors.Remote, "chat completion returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// Synthesize requests raw 24 kHz PCM for text.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	ctx, span := trace.StartSpan(ctx, "remote.synthesize")
	defer span.End()

	raw, err := call(ctx, o, PhaseSynthesize, func(ctx context.Context) ([]byte, error) {
		resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(o.cfg.TTSModel),
			Input:          text,
			Voice:          openai.SpeechVoice(o.cfg.Voice),
			ResponseFormat: openai.SpeechResponseFormatPcm,
		})
		if err != nil {
			return nil, err
		}
		defer resp.Close()
		return io.ReadAll(resp)
	})
	if err != nil {
		span.RecordError(err)
		return audio.Clip{}, err
	}
	clip := audio.DecodePCM16(raw, SpeechSampleRate)
	span.SetAttr("audio_seconds", clip.Duration().Seconds())
	return clip, nil
}

// call bounds fn by the configured timeout and runs it through the breaker.
func call[T any](ctx context.Context, o *OpenAI, phase string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	start := time.Now()
	v, err := resilience.ExecuteWithResult(o.breaker, func() (T, error) { return fn(ctx) })
	log := trace.Logger(ctx)
	if err != nil {
		err = classify(err, phase)
		log.Warn("speech service call failed", "phase", phase, "duration", time.Since(start), "error", err)
		return v, err
	}
	log.Debug("speech service call", "phase", phase, "duration", time.Since(start))
	return v, nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove temp recording", "path", path, "error", err)
	}
}
