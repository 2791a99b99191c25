package server

import (
	"net/http"
	"strings"

	"github.com/voxnote/voxnote/internal/folder"
)

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	all, err := s.folders.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": all})
}

type createFolderRequest struct {
	Name             string `json:"name"`
	ActivationPhrase string `json:"activationPhrase"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "name is required"})
		return
	}
	f, err := s.folders.Add(r.Context(), folder.Folder{
		Name:             req.Name,
		ActivationPhrase: req.ActivationPhrase,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.folders.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
