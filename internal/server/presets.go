package server

import (
	"net/http"

	"github.com/voxnote/voxnote/internal/preset"
)

type presetListResponse struct {
	Presets  []preset.Preset `json:"presets"`
	Selected string          `json:"selected,omitempty"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, _ *http.Request) {
	resp := presetListResponse{Presets: s.presets.List()}
	if sel, ok := s.presets.Selected(); ok {
		resp.Selected = sel.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

type createPresetRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var req createPresetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.presets.CreateCustomPreset(r.Context(), req.Name, req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.RecordPresetMutation(r.Context(), "create")
	writeJSON(w, http.StatusCreated, p)
}

type updatePresetRequest struct {
	Name    *string `json:"name"`
	Prompt  *string `json:"prompt"`
	Enabled *bool   `json:"enabled"`
}

func (s *Server) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	var req updatePresetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	upd := preset.Update{Name: req.Name, Prompt: req.Prompt, Enabled: req.Enabled}
	p, err := s.presets.UpdatePreset(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.RecordPresetMutation(r.Context(), "update")
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.presets.DeletePreset(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.RecordPresetMutation(r.Context(), "delete")
	w.WriteHeader(http.StatusNoContent)
}

type selectPresetRequest struct {
	// ID of the preset to select. Empty turns enhancement off.
	ID string `json:"id"`
}

func (s *Server) handleSelectPreset(w http.ResponseWriter, r *http.Request) {
	var req selectPresetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.presets.SelectPreset(r.Context(), req.ID); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.RecordPresetMutation(r.Context(), "select")
	w.WriteHeader(http.StatusNoContent)
}
