// Package server exposes the dictation pipeline over HTTP.
//
// The API is a small JSON surface:
//
//	POST   /v1/transcripts          process a raw transcript
//	GET    /v1/transcripts          list the saved history, newest first
//	DELETE /v1/transcripts/{id}     delete one history entry
//	POST   /v1/enhance              run AI enhancement on a piece of text
//	GET    /v1/presets              list presets and the current selection
//	POST   /v1/presets              create a custom preset
//	PATCH  /v1/presets/{id}         update a preset
//	DELETE /v1/presets/{id}         delete a custom preset
//	PUT    /v1/presets/selected     change the selected preset
//	GET    /v1/folders              list folders
//	POST   /v1/folders              create a folder
//	DELETE /v1/folders/{id}         delete a folder
//	GET    /healthz, /readyz        probes
//	GET    /metrics                 Prometheus scrape endpoint
//
// Errors are returned as {"error": "..."} with a status code mapped from the
// domain error: 404 for missing resources, 409 for conflicts and limits, 422
// for validation failures.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxnote/voxnote/internal/enhance"
	"github.com/voxnote/voxnote/internal/folder"
	"github.com/voxnote/voxnote/internal/health"
	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/pipeline"
	"github.com/voxnote/voxnote/internal/preset"
)

// Server holds the handler dependencies. Construct with [New].
type Server struct {
	pipeline *pipeline.Pipeline
	presets  *preset.Manager
	folders  folder.Store
	enhancer *enhance.Service
	health   *health.Handler
	metrics  *observe.Metrics
}

// Option configures a [Server].
type Option func(*Server)

// WithEnhancer enables the /v1/enhance endpoint.
func WithEnhancer(e *enhance.Service) Option {
	return func(s *Server) { s.enhancer = e }
}

// WithHealth sets the health handler. When unset, probes report ok with no
// dependency checks.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics used by the HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a [Server] around the processing pipeline and stores.
func New(p *pipeline.Pipeline, presets *preset.Manager, folders folder.Store, opts ...Option) *Server {
	s := &Server{
		pipeline: p,
		presets:  presets,
		folders:  folders,
	}
	for _, o := range opts {
		o(s)
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Routes returns the fully wired HTTP handler, including the observability
// middleware, health probes, and the Prometheus scrape endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/transcripts", s.handleProcessTranscript)
	mux.HandleFunc("GET /v1/transcripts", s.handleListTranscripts)
	mux.HandleFunc("DELETE /v1/transcripts/{id}", s.handleDeleteTranscript)

	if s.enhancer != nil {
		mux.HandleFunc("POST /v1/enhance", s.handleEnhance)
	}

	mux.HandleFunc("GET /v1/presets", s.handleListPresets)
	mux.HandleFunc("POST /v1/presets", s.handleCreatePreset)
	mux.HandleFunc("PATCH /v1/presets/{id}", s.handleUpdatePreset)
	mux.HandleFunc("DELETE /v1/presets/{id}", s.handleDeletePreset)
	mux.HandleFunc("PUT /v1/presets/selected", s.handleSelectPreset)

	mux.HandleFunc("GET /v1/folders", s.handleListFolders)
	mux.HandleFunc("POST /v1/folders", s.handleCreateFolder)
	mux.HandleFunc("DELETE /v1/folders/{id}", s.handleDeleteFolder)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// writeJSON encodes v with the given status. Encoding failures degrade to a
// plain 500; by then the status line has already been written.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, preset.ErrNotFound), errors.Is(err, folder.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, preset.ErrDuplicateName),
		errors.Is(err, preset.ErrCustomLimit),
		errors.Is(err, preset.ErrSystemPreset),
		errors.Is(err, folder.ErrDuplicateName),
		errors.Is(err, folder.ErrDuplicatePhrase):
		status = http.StatusConflict
	case errors.Is(err, preset.ErrInvalidPreset):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
