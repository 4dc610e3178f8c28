// Package httpapi serves the status/health/diagnostics surface
// described in spec §6 "External interfaces" (explicitly not the
// product web UI, which spec's Non-goals excludes). Routing moves
// from the teacher's bare net/http mux (scheduler/server.go) onto
// go-chi/chi, and the health/readiness/websocket handlers are
// generalized from Sigenergy plant health to this system's slot/
// diagnostics model; the gorilla/websocket broadcaster is kept as an
// ops feed of diagnostics.Record events rather than a UI status push.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/kepler-ems/planner/internal/diagnostics"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SlotWindowReader is the read surface the status endpoint needs.
type SlotWindowReader interface {
	GetCurrentSlot(ctx context.Context, now time.Time) (model.Slot, error)
	GetSlotWindow(ctx context.Context, from, to time.Time) ([]model.Slot, error)
}

// Server is the chi-routed HTTP API.
type Server struct {
	router   chi.Router
	store    SlotWindowReader
	diag     *diagnostics.Bus
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func New(store SlotWindowReader, diag *diagnostics.Bus, log zerolog.Logger) *Server {
	s := &Server{
		store: store,
		diag:  diag,
		log:   log.With().Str("module", "httpapi").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/schedule", s.handleSchedule)
	r.Get("/api/diagnostics/ws", s.handleDiagnosticsWS)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	slot, err := s.store.GetCurrentSlot(r.Context(), time.Now())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no current slot"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "current_slot": slot.SlotStart})
}

// statusResponse mirrors the shape of the teacher's StatusResponse
// (scheduler/server.go) but over this system's slot model rather than
// miner/plant state.
type statusResponse struct {
	Now         time.Time   `json:"now"`
	CurrentSlot *model.Slot `json:"current_slot,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	resp := statusResponse{Now: now}
	if slot, err := s.store.GetCurrentSlot(r.Context(), now); err == nil {
		resp.CurrentSlot = &slot
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	slots, err := s.store.GetSlotWindow(r.Context(), now, now.Add(48*time.Hour))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// handleDiagnosticsWS streams diagnostics.Record events to a
// connected client, following the teacher's wsHandler/
// handleBroadcasts pattern (scheduler/server.go) but fed from the
// diagnostics bus instead of a periodic status poll.
func (s *Server) handleDiagnosticsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.diag.Subscribe()
	defer unsubscribe()

	for rec := range ch {
		if err := conn.WriteJSON(rec); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
