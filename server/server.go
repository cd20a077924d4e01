// Package server exposes the pipeline over a small JSON HTTP API plus a
// WebSocket event stream:
//
//	POST   /v1/runs             submit a run
//	GET    /v1/runs/{id}        status snapshot
//	GET    /v1/runs/{id}/result 200 document, 202 not ready, 410 failed
//	DELETE /v1/runs/{id}        cancel
//	GET    /v1/runs/{id}/watch  WebSocket run-event stream
//
// The server is transport only: request validation, run bookkeeping and
// failure taxonomy all live behind the Pipeline interface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/logging"
)

// Pipeline is the façade surface the server fronts. *proposalmesh.ProposalMesh
// satisfies it.
type Pipeline interface {
	Submit(ctx context.Context, req core.Request) (string, error)
	Status(runID string) (*core.PipelineRun, error)
	Result(runID string) (*core.ProposalDocument, error)
	Cancel(runID string) error
	Watch(runID string) (<-chan core.RunEvent, func(), error)
}

// Options configure a Server.
type Options struct {
	// Logger receives request diagnostics. Defaults to a NoOpLogger.
	Logger logging.Logger
}

// Server routes the JSON API. It implements http.Handler.
type Server struct {
	pipeline Pipeline
	logger   logging.Logger
	handler  http.Handler
}

// New creates a Server over the given pipeline.
func New(pipeline Pipeline, optFns ...func(o *Options)) *Server {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{pipeline: pipeline, logger: opts.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/runs", s.handleSubmit)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleStatus)
	mux.HandleFunc("GET /v1/runs/{id}/result", s.handleResult)
	mux.HandleFunc("DELETE /v1/runs/{id}", s.handleCancel)
	mux.HandleFunc("GET /v1/runs/{id}/watch", s.handleWatch)
	s.handler = corsMiddleware(mux)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type submitRequest struct {
	Company  string `json:"company"`
	Industry string `json:"industry"`
}

type submitResponse struct {
	RunID string `json:"run_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type resultPendingResponse struct {
	Status core.RunStatus `json:"status"`
	Detail string         `json:"detail,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in submitRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	req := core.Request{
		Company:  strings.TrimSpace(in.Company),
		Industry: strings.TrimSpace(in.Industry),
	}
	runID, err := s.pipeline.Submit(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("http.run.submitted", "run_id", runID, "company", req.Company)
	writeJSON(w, http.StatusAccepted, submitResponse{RunID: runID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.pipeline.Status(r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	doc, err := s.pipeline.Result(r.PathValue("id"))
	if err == nil {
		writeJSON(w, http.StatusOK, doc)
		return
	}

	var rfe *core.RunFailedError
	switch {
	case errors.Is(err, core.ErrNotReady):
		writeJSON(w, http.StatusAccepted, resultPendingResponse{Status: core.RunRunning, Detail: err.Error()})
	case errors.As(err, &rfe):
		writeJSON(w, http.StatusGone, resultPendingResponse{Status: rfe.Status, Detail: rfe.Reason})
	default:
		s.writeLookupError(w, err)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.Cancel(r.PathValue("id")); err != nil {
		s.writeLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeLookupError maps store lookup failures onto HTTP statuses.
func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	s.logger.Error("http.internal", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// corsMiddleware mirrors the permissive development CORS policy: echo the
// origin when present, allow the API verbs, short-circuit preflight.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
