package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/agent"
	"github.com/abhisek/snapask/internal/llm"
)

// Session is the part of *agent.Agent the server drives.
type Session interface {
	Snapshot() agent.Snapshot
	Subscribe(fn func()) (unsubscribe func())
	Answer(ctx context.Context, question string) agent.Snapshot
	SelectModel(v llm.Variant) error
}

// Camera sends capture commands. *device.Link satisfies it.
type Camera interface {
	CaptureOnce(ctx context.Context) error
	CaptureInterval(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCamera enables POST /capture.
func WithCamera(c Camera) Option {
	return func(s *Server) { s.camera = c }
}

// WithStats serves the value returned by fn on GET /stats.
func WithStats(fn func() any) Option {
	return func(s *Server) { s.stats = fn }
}

// Server serves the state feed and control API for one session.
//
//	GET  /state     websocket; a JSON snapshot on connect and after every change
//	GET  /snapshot  current snapshot
//	GET  /stats     pipeline counters (when configured)
//	POST /ask       {"question": "..."}; blocks until answered
//	POST /model     {"variant": "remote|local|text"}
//	POST /capture   {"mode": "once|interval"}
type Server struct {
	session Session
	camera  Camera
	stats   func() any
	logger  *zap.Logger

	hub         *Hub
	mux         *http.ServeMux
	unsubscribe func()
}

// NewServer creates a server and subscribes it to session changes. Call
// Close to unsubscribe and disconnect viewers.
func NewServer(session Session, opts ...Option) *Server {
	s := &Server{
		session: session,
		logger:  zap.NewNop(),
		mux:     http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	s.hub = NewHub(s.logger)
	s.logger = s.logger.With(zap.String("component", "feed"))

	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("POST /ask", s.handleAsk)
	s.mux.HandleFunc("POST /model", s.handleModel)
	s.mux.HandleFunc("POST /capture", s.handleCapture)

	s.unsubscribe = session.Subscribe(s.publish)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Viewers returns the number of connected websocket viewers.
func (s *Server) Viewers() int {
	return s.hub.Count()
}

// Close stops publishing and disconnects viewers.
func (s *Server) Close() {
	s.unsubscribe()
	s.hub.Close()
}

func (s *Server) publish() {
	s.hub.BroadcastFunc(s.snapshotJSON)
}

func (s *Server) snapshotJSON() []byte {
	b, err := json.Marshal(s.session.Snapshot())
	if err != nil {
		s.logger.Error("marshal snapshot", zap.Error(err))
		return nil
	}
	return b
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.snapshotJSON())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusNotFound, "stats not available")
		return
	}
	writeJSON(w, http.StatusOK, s.stats())
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	snap := s.session.Answer(r.Context(), req.Question)
	status := http.StatusOK
	if snap.Loading {
		status = http.StatusConflict
	}
	writeJSON(w, status, snap)
}

type modelRequest struct {
	Variant string `json:"variant"`
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := llm.ParseVariant(req.Variant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch err := s.session.SelectModel(v); {
	case errors.Is(err, agent.ErrQueryInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, s.session.Snapshot())
	}
}

type captureRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.camera == nil {
		writeError(w, http.StatusServiceUnavailable, "no camera connected")
		return
	}
	req := captureRequest{Mode: "once"}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var err error
	switch req.Mode {
	case "", "once":
		err = s.camera.CaptureOnce(r.Context())
	case "interval":
		err = s.camera.CaptureInterval(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "mode must be once or interval")
		return
	}
	if err != nil {
		s.logger.Warn("capture command failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
