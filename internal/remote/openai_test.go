package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/orb/internal/audio"
	apperrors "github.com/GriffinCanCode/orb/internal/errors"
	"github.com/GriffinCanCode/orb/internal/resilience"
)

type fakeOpenAI struct {
	hits       atomic.Int32
	chatStatus int
	delay      time.Duration
	lastChat   openaiChat
}

type openaiChat struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func (f *fakeOpenAI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  what is the weather  "}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-r.Context().Done():
				return
			}
		}
		if f.chatStatus != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.chatStatus)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&f.lastChat); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Sunny and mild."}}]}`))
	})
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		pcm := make([]byte, 2*SpeechSampleRate/2) // 0.5s
		audio.EncodePCM16(pcm, audio.Tone(440, 0.5, 500*time.Millisecond, SpeechSampleRate).Samples)
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write(pcm)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeOpenAI, timeout time.Duration) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIConfig{
		APIKey:          "sk-test",
		BaseURL:         srv.URL + "/v1",
		TranscribeModel: "whisper-1",
		ChatModel:       "gpt-4o-mini",
		TTSModel:        "tts-1",
		Voice:           "alloy",
		SystemPrompt:    "be brief",
		Timeout:         timeout,
		Breaker:         resilience.Config{Name: "test", Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1},
	})
}

func TestTranscribeRemovesTempFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	c := newTestClient(t, &fakeOpenAI{}, 5*time.Second)

	text, err := c.Transcribe(context.Background(), audio.Tone(220, 0.3, time.Second, 16000))
	require.NoError(t, err)
	assert.Equal(t, "what is the weather", text)

	left, _ := filepath.Glob(filepath.Join(tmp, "orb_record_*.wav"))
	assert.Empty(t, left, "temp recording should be removed")
}

func TestTranscribeFailureStillRemovesTempFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := NewOpenAI(OpenAIConfig{APIKey: "x", BaseURL: srv.URL + "/v1", Timeout: time.Second, Breaker: resilience.RemoteConfig()})

	_, err := c.Transcribe(context.Background(), audio.Tone(220, 0.3, 100*time.Millisecond, 16000))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.Remote))
	assert.Equal(t, PhaseTranscribe, apperrors.Phase(err))

	entries, _ := os.ReadDir(tmp)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "orb_record_"), "leftover %s", e.Name())
	}
}

func TestReply(t *testing.T) {
	f := &fakeOpenAI{}
	c := newTestClient(t, f, 5*time.Second)

	reply, err := c.Reply(context.Background(), "what is the weather")
	require.NoError(t, err)
	assert.Equal(t, "Sunny and mild.", reply)

	assert.Equal(t, "gpt-4o-mini", f.lastChat.Model)
	assert.InDelta(t, ReplyTemperature, f.lastChat.Temperature, 1e-6)
	assert.Equal(t, ReplyMaxTokens, f.lastChat.MaxTokens)
	require.Len(t, f.lastChat.Messages, 2)
	assert.Equal(t, "system", f.lastChat.Messages[0].Role)
	assert.Equal(t, "be brief", f.lastChat.Messages[0].Content)
	assert.Equal(t, "what is the weather", f.lastChat.Messages[1].Content)
}

func TestSynthesize(t *testing.T) {
	c := newTestClient(t, &fakeOpenAI{}, 5*time.Second)

	clip, err := c.Synthesize(context.Background(), "Sunny and mild.")
	require.NoError(t, err)
	assert.Equal(t, SpeechSampleRate, clip.SampleRate)
	assert.Equal(t, 500*time.Millisecond, clip.Duration())
	assert.InDelta(t, 0.5/1.4142, audio.RMS(clip.Samples), 0.01)
}

func TestReplyTimeout(t *testing.T) {
	c := newTestClient(t, &fakeOpenAI{delay: time.Second}, 50*time.Millisecond)

	start := time.Now()
	_, err := c.Reply(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.Timeout), "got %v", err)
	assert.True(t, apperrors.IsRemote(err))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestBreakerFailsFast(t *testing.T) {
	f := &fakeOpenAI{chatStatus: http.StatusTooManyRequests}
	c := newTestClient(t, f, 5*time.Second)

	for i := 0; i < 2; i++ {
		_, err := c.Reply(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.Remote))
		assert.Equal(t, PhaseReply, apperrors.Phase(err))
	}
	hits := f.hits.Load()

	_, err := c.Reply(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.Unavailable), "got %v", err)
	assert.True(t, apperrors.IsRemote(err))
	assert.Equal(t, hits, f.hits.Load(), "open breaker must not reach the server")
	assert.Equal(t, resilience.Open, c.Breaker().State())
}

func TestCancelledCallsLeaveBreakerClosed(t *testing.T) {
	f := &fakeOpenAI{}
	c := newTestClient(t, f, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := c.Reply(ctx, "hello")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.Cancelled), "got %v", err)
	}
	assert.Equal(t, resilience.Closed, c.Breaker().State())
}
