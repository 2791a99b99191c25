package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/voxnote/voxnote/internal/pipeline"
)

type processRequest struct {
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"durationSeconds"`
	Service         string  `json:"service"`
	PresetID        string  `json:"presetId"`
	SkipEnhance     bool    `json:"skipEnhance"`
}

func (s *Server) handleProcessTranscript(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "text is required"})
		return
	}

	opts := pipeline.Options{
		Duration:    time.Duration(req.DurationSeconds * float64(time.Second)),
		Service:     req.Service,
		PresetID:    req.PresetID,
		SkipEnhance: req.SkipEnhance,
	}

	res, err := s.pipeline.Process(r.Context(), req.Text, opts)
	if err != nil {
		// The result is still usable when only persistence failed; surface
		// the record rather than losing the dictation.
		if res.Transcription.ID != "" {
			writeJSON(w, http.StatusOK, res)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.pipeline.History(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcriptions": recs})
}

func (s *Server) handleDeleteTranscript(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.DeleteTranscription(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type enhanceRequest struct {
	Text     string `json:"text"`
	PresetID string `json:"presetId"`
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome := s.enhancer.Enhance(r.Context(), req.Text, req.PresetID)
	writeJSON(w, http.StatusOK, outcome)
}
