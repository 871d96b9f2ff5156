package display

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-transcript-reconciler/internal/observability"
	"live-transcript-reconciler/internal/observability/logging"
	"live-transcript-reconciler/internal/observability/metrics"
	"live-transcript-reconciler/internal/service/ingest"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the transcript view: REST access to the reconciled records
// and a websocket feed of live changes, plus the embedded viewer page.
type Server struct {
	server *http.Server
	router *mux.Router
	audio  *mux.Router
	hub    *Hub
	svc    *ingest.Service
	addr   string
	logger zerolog.Logger
}

// NewServer wires the display routes. The hub must be running before
// viewers connect.
func NewServer(addr string, svc *ingest.Service, hub *Hub) *Server {
	s := &Server{
		router: mux.NewRouter(),
		hub:    hub,
		svc:    svc,
		addr:   addr,
		logger: logging.WithComponent("display"),
	}

	s.router.Use(observability.RequestLogger(metrics.DefaultMetrics))

	s.router.HandleFunc("/api/records", s.handleListRecords).Methods("GET")
	s.router.HandleFunc("/api/records", s.handleClearRecords).Methods("DELETE")
	s.router.HandleFunc("/api/records/{speakerId}", s.handleGetRecord).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWS)

	// Routes match in registration order, so the audio ingress slot must be
	// reserved here; the catch-all below would otherwise shadow anything
	// mounted after construction.
	s.audio = s.router.PathPrefix("/ws/audio").Subrouter()

	staticFS, _ := fs.Sub(staticFiles, "static")
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s
}

// Router returns the full route table, for serving it without Start.
func (s *Server) Router() *mux.Router {
	return s.router
}

// MountAudio serves h at /ws/audio. The slot is reserved ahead of the
// static catch-all, so a handler mounted after construction still matches.
func (s *Server) MountAudio(h http.HandlerFunc) {
	s.audio.NewRoute().HandlerFunc(h)
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("Starting display server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Display server error")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down display server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.svc.Records()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode records")
	}
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	speakerId := mux.Vars(r)["speakerId"]

	rec, ok := s.svc.Get(speakerId)
	if !ok {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		s.logger.Error().Err(err).Str("speakerId", speakerId).Msg("Failed to encode record")
	}
}

func (s *Server) handleClearRecords(w http.ResponseWriter, r *http.Request) {
	cleared := s.svc.ClearAll()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"cleared": cleared})
}

// handleWS upgrades a viewer connection, replays the current records so the
// page starts complete, and hands the connection to the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Viewer websocket upgrade failed")
		return
	}

	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, 256)}

	for _, rec := range s.svc.Records() {
		data, err := json.Marshal(viewMessage{Type: "record", Record: &rec})
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
