package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkpass/inkpass/bundle"
	"github.com/inkpass/inkpass/passes"
	"github.com/inkpass/inkpass/pending"
)

// prepareResponse is the body returned by the prepare endpoint.
type prepareResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	if !s.acquireRenderSlot(r.Context()) {
		return
	}
	defer s.releaseRenderSlot()

	archive, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondPass(w, archive)
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	token, err := s.generator.Prepare(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, prepareResponse{Token: token})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		s.respondError(w, r, fmt.Errorf("%w: missing token", passes.ErrInvalidRequest))
		return
	}

	if !s.acquireRenderSlot(r.Context()) {
		return
	}
	defer s.releaseRenderSlot()

	archive, err := s.generator.Retrieve(r.Context(), token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondPass(w, archive)
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (passes.Request, bool) {
	var req passes.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: malformed body: %v", passes.ErrInvalidRequest, err))
		return passes.Request{}, false
	}
	return req, true
}

func (s *Server) respondPass(w http.ResponseWriter, archive []byte) {
	w.Header().Set("Content-Type", bundle.MediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="pass.pkpass"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondError maps pipeline sentinels to HTTP statuses. Anything
// unrecognized is an internal fault and the detail stays in the log.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var message string

	switch {
	case errors.Is(err, passes.ErrInvalidRequest):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, pending.ErrNotFound):
		status = http.StatusNotFound
		message = "unknown or already consumed token"
	case errors.Is(err, pending.ErrExpired):
		status = http.StatusGone
		message = "token expired"
	default:
		status = http.StatusInternalServerError
		message = "pass generation failed"
		s.logger.Error("Request {Method} {Path} failed: {Error}", r.Method, r.URL.Path, err)
	}

	s.respondJSON(w, status, errorResponse{Error: message})
}
