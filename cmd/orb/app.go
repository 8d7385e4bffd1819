package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/orb/internal/ambient"
	"github.com/GriffinCanCode/orb/internal/audio"
	"github.com/GriffinCanCode/orb/internal/config"
	apperrors "github.com/GriffinCanCode/orb/internal/errors"
	"github.com/GriffinCanCode/orb/internal/leds"
	"github.com/GriffinCanCode/orb/internal/metrics"
	"github.com/GriffinCanCode/orb/internal/orchestrator"
	"github.com/GriffinCanCode/orb/internal/remote"
	"github.com/GriffinCanCode/orb/internal/resilience"
	"github.com/GriffinCanCode/orb/internal/server"
	"github.com/GriffinCanCode/orb/internal/syncx"
	"github.com/GriffinCanCode/orb/internal/trigger"
)

const shutdownTimeout = 5 * time.Second

// assets are the decoded audio files the orb cannot start without.
type assets struct {
	bed     audio.Clip
	trigger audio.Clip
	failure audio.Clip
}

func loadAssets(cfg *config.Config) (assets, error) {
	var a assets
	var err error
	if a.bed, err = audio.DecodeWAVFile(cfg.Paths.AmbientLoop); err != nil {
		return a, err
	}
	if a.bed.Empty() {
		return a, apperrors.New(apperrors.Config, "ambient loop is empty").WithMetadata("path", cfg.Paths.AmbientLoop)
	}
	if a.trigger, err = audio.DecodeWAVFile(cfg.Paths.TriggerChime); err != nil {
		return a, err
	}
	if a.failure, err = audio.DecodeWAVFile(cfg.Paths.FailureChime); err != nil {
		return a, err
	}
	return a, nil
}

func recorderConfig(cfg *config.Config) audio.RecorderConfig {
	return audio.RecorderConfig{
		SampleRate:         cfg.RecordSampleRate,
		FrameSize:          cfg.RecordBlocksize,
		SilenceDuration:    cfg.SilenceDuration(),
		MaxDuration:        cfg.MaxRecordDuration(),
		Threshold:          cfg.SilenceThreshold,
		Multiplier:         cfg.SilenceThresholdMultiplier,
		CalibrationSeconds: cfg.CalibrationSeconds,
	}
}

// openSink opens the playback device, retrying while it comes up. In dry-run
// a missing device falls back to a clock-driven sink.
func openSink(ctx context.Context, cfg *config.Config, r audio.Renderer) (audio.Sink, error) {
	var out *audio.Output
	err := resilience.Retry(ctx, resilience.DeviceRetryConfig(), func() error {
		var err error
		out, err = audio.OpenOutput(cfg.OutputSampleRate, r)
		return err
	})
	if err == nil {
		return out, nil
	}
	if !cfg.DryRun.Enabled {
		return nil, err
	}
	slog.Warn("no playback device, rendering against the clock", "error", err)
	return audio.NewClockOutput(cfg.OutputSampleRate, r), nil
}

// openSource opens the microphone, retrying while it comes up. In dry-run a
// missing microphone falls back to a simulated speaker.
func openSource(ctx context.Context, cfg *config.Config) (audio.Source, func(), error) {
	var mic *audio.Microphone
	err := resilience.Retry(ctx, resilience.DeviceRetryConfig(), func() error {
		var err error
		mic, err = audio.NewMicrophone(cfg.RecordSampleRate, cfg.RecordBlocksize)
		return err
	})
	if err == nil {
		return mic, func() { _ = mic.Close() }, nil
	}
	if !cfg.DryRun.Enabled {
		return nil, nil, err
	}
	slog.Warn("no capture device, using simulated speech", "error", err)
	src := &audio.SimulatedSource{
		SampleRate: cfg.RecordSampleRate,
		Script:     []audio.Segment{audio.Speech(1500 * time.Millisecond)},
		Realtime:   true,
	}
	return src, func() {}, nil
}

// breakerConfig starts from the speech service defaults and applies the
// configured threshold and reset window.
func breakerConfig(cfg *config.Config) resilience.Config {
	bc := resilience.RemoteConfig()
	if cfg.Remote.BreakerThreshold > 0 {
		bc.Threshold = cfg.Remote.BreakerThreshold
	}
	if d := cfg.BreakerReset(); d > 0 {
		bc.ResetTimeout = d
	}
	return bc
}

func buildRemote(cfg *config.Config, m *metrics.Metrics) remote.Services {
	if cfg.Remote.APIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, speech services will fail until simulation is enabled")
		return remote.Failing{Reason: "OPENAI_API_KEY not set"}
	}
	svc := remote.NewOpenAI(remote.OpenAIConfig{
		APIKey:          cfg.Remote.APIKey,
		BaseURL:         cfg.Remote.BaseURL,
		TranscribeModel: cfg.Models.Transcribe,
		ChatModel:       cfg.Models.Chat,
		TTSModel:        cfg.Models.TTS,
		Voice:           cfg.Models.Voice,
		SystemPrompt:    cfg.ChatSystemPrompt,
		Timeout:         cfg.RemoteTimeout(),
		Breaker:         breakerConfig(cfg),
	})
	svc.Breaker().WithHook(func(_, to resilience.State) { m.SetBreakerState(int(to)) })
	return svc
}

// runOrb wires every component and blocks until ctx is done.
func runOrb(ctx context.Context, cfg *config.Config, stdin io.Reader) error {
	a, err := loadAssets(cfg)
	if err != nil {
		return err
	}

	gain := syncx.NewFloat64(cfg.AmbientVolumeNormal)
	player := ambient.NewPlayer(a.bed, cfg.OutputSampleRate, gain)
	sink, err := openSink(ctx, cfg, player)
	if err != nil {
		return err
	}
	defer sink.Close()
	if err := sink.Start(); err != nil {
		return err
	}

	src, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	m := metrics.New()
	m.WatchGain(gain.Load)

	inbox := trigger.NewInbox()
	m.WatchInboxOverflow(inbox.Overflow)
	listeners, wake := trigger.Build(cfg, stdin)

	deps := orchestrator.Deps{
		Config:  cfg,
		Inbox:   inbox,
		Capture: audio.NewRecorder(src, recorderConfig(cfg)),
		Speaker: player,
		Live:    buildRemote(cfg, m),
		Sim:     remote.NewSimulator(cfg.OutputSampleRate),
		Chimes:  orchestrator.Chimes{Trigger: a.trigger, Failure: a.failure},
		Gain:    gain,
		Metrics: m,
	}
	if wake != nil {
		deps.Wake = wake
	}
	orch := orchestrator.New(deps)
	if cfg.DryRun.Enabled && cfg.Remote.APIKey == "" {
		orch.SetSimulation(true)
	}

	var strip leds.Strip = leds.NopStrip{}
	if cfg.DryRun.Enabled {
		strip = leds.NewLogStrip(slog.Default())
	}
	animator := leds.NewAnimator(orch.Intent, strip, cfg.LEDs.Count, cfg.LEDs.Brightness, cfg.LEDTick())

	srv := server.New(orch, m)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcServer := srv.GRPCServer()
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Config, "listen grpc").WithMetadata("addr", cfg.GRPCAddr)
	}

	var wg sync.WaitGroup
	spawn := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			slog.Debug("component stopped", "component", name)
		}()
	}

	spawn("orchestrator", func() { _ = orch.Run(ctx) })
	spawn("leds", func() { animator.Run(ctx) })
	spawn("triggers", func() { trigger.RunAll(ctx, inbox, listeners) })
	spawn("server", func() { srv.Run(ctx) })
	spawn("grpc", func() {
		if err := grpcServer.Serve(grpcLis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	})
	spawn("http", func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	})

	slog.Info("orb running",
		"http", cfg.HTTPAddr,
		"grpc", cfg.GRPCAddr,
		"dry_run", cfg.DryRun.Enabled,
		"wake_word", cfg.WakeWord.Enabled,
		"touch", cfg.TouchEnabled(),
		"sources", len(listeners))

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	wg.Wait()
	orch.Wait()
	slog.Info("shutdown complete")
	return nil
}
