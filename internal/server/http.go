package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/zeusync/factorysim/internal/core/control"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/observability/log"
)

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/actions", s.handleAction)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/deselect", s.handleDeselect)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.config.MetricsPath != "" && s.config.MetricsHandler != nil {
		mux.Handle("GET "+s.config.MetricsPath, s.config.MetricsHandler)
	}
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

type selectRequest struct {
	Target model.EntityID `json:"target"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.GetStats())
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var a control.Action
	if err := s.readJSON(w, r, &a); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.Dispatch(a); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.Select(req.Target); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDeselect(w http.ResponseWriter, _ *http.Request) {
	s.engine.Deselect()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.config.ReadLimit)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidMessage)
		}
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadRequest
	if errors.Is(err, control.ErrUnknownTarget) {
		code = http.StatusNotFound
	}
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", log.Error(err))
	}
}
