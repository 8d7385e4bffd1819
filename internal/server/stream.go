package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/orb/internal/orchestrator"
	"github.com/GriffinCanCode/orb/internal/trace"
)

// StateMessage is pushed to WebSocket clients on every state change.
type StateMessage struct {
	Type      string    `json:"type"`
	State     string    `json:"state"`
	Previous  string    `json:"previous,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	At        time.Time `json:"at"`
}

func newStateMessage(ev orchestrator.StateEvent) StateMessage {
	return StateMessage{
		Type:      "state",
		State:     ev.State,
		Previous:  ev.Previous,
		SessionID: ev.SessionID,
		At:        ev.At,
	}
}

// handleWebSocket sends the current state, then every change, until the
// client goes away. Client messages are ignored.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	log := trace.Logger(r.Context())
	log.Info("websocket connected", "remote", r.RemoteAddr)

	snap := s.ctrl.Status().Snapshot()
	if err := s.write(r.Context(), conn, StateMessage{Type: "state", State: snap.State, SessionID: snap.SessionID, At: snap.UpdatedAt}); err != nil {
		log.Debug("websocket initial write failed", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()
	log.Info("websocket disconnected", "remote", r.RemoteAddr)
}

// broadcast writes msg to every client in turn so each sees changes in order.
func (s *Server) broadcast(ctx context.Context, msg StateMessage) {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := s.write(ctx, c, msg); err != nil {
			trace.Logger(ctx).Debug("websocket write failed", "error", err)
		}
	}
}

func (s *Server) write(ctx context.Context, c *websocket.Conn, msg StateMessage) error {
	ctx, cancel := context.WithTimeout(ctx, WSWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, msg)
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
