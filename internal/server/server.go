package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc/health"

	"github.com/GriffinCanCode/orb/internal/metrics"
	"github.com/GriffinCanCode/orb/internal/orchestrator"
	"github.com/GriffinCanCode/orb/internal/trace"
	"github.com/GriffinCanCode/orb/internal/trigger"
)

// Controller is the part of the orchestrator the control surface drives.
type Controller interface {
	Trigger(src trigger.Source) bool
	Reset()
	SetSimulation(enabled bool)
	SetWakeWord(enabled bool) error
	Status() *orchestrator.StatusStore
}

type HealthResponse struct {
	OK             bool    `json:"ok"`
	AmbientRunning bool    `json:"ambient_running"`
	LastError      *string `json:"last_error"`
}

type StateResponse struct {
	State                 string            `json:"state"`
	SessionID             string            `json:"session_id,omitempty"`
	DryRun                bool              `json:"dry_run"`
	SimulationEnabled     bool              `json:"simulation_enabled"`
	LastTranscriptSummary string            `json:"last_transcript_summary"`
	LastReplySummary      string            `json:"last_reply_summary"`
	LastErrorPhase        string            `json:"last_error_phase,omitempty"`
	DroppedTriggers       uint64            `json:"dropped_triggers"`
	InboxOverflow         uint64            `json:"inbox_overflow"`
	WakeWordEnabled       bool              `json:"wake_word_enabled"`
	Sessions              map[string]uint64 `json:"sessions"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

type TriggerResponse struct {
	Triggered bool `json:"triggered"`
}

type ResetResponse struct {
	Reset bool `json:"reset"`
}

type SimulationRequest struct {
	Enabled bool `json:"enabled"`
}

type SimulationResponse struct {
	SimulationEnabled bool `json:"simulation_enabled"`
}

type WakeWordRequest struct {
	Enabled bool `json:"enabled"`
}

type WakeWordResponse struct {
	WakeWordEnabled bool `json:"wake_word_enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server handles HTTP, WebSocket and gRPC health requests.
type Server struct {
	ctrl    Controller
	metrics *metrics.Metrics
	limiter *ipRateLimiter
	health  *health.Server

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a new server. Run must be called to stream state changes and
// keep the health status current.
func New(ctrl Controller, m *metrics.Metrics) *Server {
	return &Server{
		ctrl:    ctrl,
		metrics: m,
		limiter: newIPRateLimiter(IPRateLimitActions, IPRateLimitWindow),
		health:  health.NewServer(),
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(trace.Middleware)

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/ws", s.handleWebSocket)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/actions", func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Post("/trigger", s.handleTrigger)
		r.Post("/reset", s.handleReset)
		r.Post("/simulation", s.handleSimulation)
		r.Post("/wake", s.handleWakeWord)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.ctrl.Status().Snapshot()
	resp := HealthResponse{OK: snap.LastError == "", AmbientRunning: snap.AmbientRunning}
	if snap.LastError != "" {
		resp.LastError = &snap.LastError
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := s.ctrl.Status().Snapshot()
	writeJSON(w, http.StatusOK, StateResponse{
		State:                 snap.State,
		SessionID:             snap.SessionID,
		DryRun:                snap.DryRun,
		SimulationEnabled:     snap.Simulation,
		LastTranscriptSummary: snap.LastTranscriptSummary,
		LastReplySummary:      snap.LastReplySummary,
		LastErrorPhase:        snap.LastErrorPhase,
		DroppedTriggers:       snap.DroppedTriggers,
		InboxOverflow:         snap.InboxOverflow,
		WakeWordEnabled:       snap.WakeWordEnabled,
		Sessions:              snap.Sessions,
		UpdatedAt:             snap.UpdatedAt,
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	ok := s.ctrl.Trigger(trigger.Remote)
	trace.Logger(r.Context()).Info("remote trigger", "queued", ok, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, TriggerResponse{Triggered: ok})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Reset()
	trace.Logger(r.Context()).Info("remote reset", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, ResetResponse{Reset: true})
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	err := json.NewDecoder(io.LimitReader(r.Body, MaxActionBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	s.ctrl.SetSimulation(req.Enabled)
	writeJSON(w, http.StatusOK, SimulationResponse{SimulationEnabled: req.Enabled})
}

func (s *Server) handleWakeWord(w http.ResponseWriter, r *http.Request) {
	var req WakeWordRequest
	err := json.NewDecoder(io.LimitReader(r.Body, MaxActionBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	if err := s.ctrl.SetWakeWord(req.Enabled); err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	trace.Logger(r.Context()).Info("remote wake word toggle", "enabled", req.Enabled, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, WakeWordResponse{WakeWordEnabled: req.Enabled})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("encode response failed", "error", err)
	}
}

// Run streams state changes to WebSocket clients and refreshes the gRPC
// health status until ctx is done. It is the only reader of the status
// event channel.
func (s *Server) Run(ctx context.Context) {
	s.refreshHealth()
	ticker := time.NewTicker(HealthRefreshInterval)
	defer ticker.Stop()

	events := s.ctrl.Status().Events()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.refreshHealth()
		case ev := <-events:
			s.broadcast(ctx, newStateMessage(ev))
		}
	}
}
