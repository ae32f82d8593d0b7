package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/logger"
)

// EditorResponse describes the working copy.
type EditorResponse struct {
	ID       string   `json:"id,omitempty"`
	Files    []string `json:"files"`
	Active   string   `json:"active"`
	Dirty    bool     `json:"dirty"`
	Warnings []string `json:"warnings,omitempty"`
}

// FileResponse is the editable text of one file.
type FileResponse struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// FileRequest is the body of PUT /api/editor/files/{name}.
type FileRequest struct {
	Content string `json:"content"`
}

// ActiveFileRequest is the body of PUT /api/editor/active.
type ActiveFileRequest struct {
	File string `json:"file"`
}

func (s *Server) editorSnapshot() EditorResponse {
	resp := EditorResponse{
		ID:     s.editor.ID(),
		Files:  s.editor.Files(),
		Active: s.editor.ActiveFile(),
		Dirty:  s.editor.Dirty(),
	}
	if resp.Files == nil {
		resp.Files = []string{}
	}
	if pkg, err := s.editor.Package(); err == nil {
		resp.Warnings = archive.Lint(pkg)
	}
	return resp
}

// handleEditor handles GET /api/editor
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, r, s.editorSnapshot())
}

// handleSetActiveFile handles PUT /api/editor/active
func (s *Server) handleSetActiveFile(w http.ResponseWriter, r *http.Request) {
	var req ActiveFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, r, "invalid request body", errors.Wrap(errBadRequest, err.Error()))
		return
	}
	if err := s.editor.SetActiveFile(req.File); err != nil {
		s.writeErrorResponse(w, r, "failed to select file", err)
		return
	}
	s.writeJSONResponse(w, r, s.editorSnapshot())
}

// handleGetFile handles GET /api/editor/files/{name}
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	content, err := s.editor.Content(name)
	if err != nil {
		s.writeErrorResponse(w, r, "failed to read file", err)
		return
	}
	s.writeJSONResponse(w, r, FileResponse{Name: name, Content: content, Language: archive.LanguageFor(name)})
}

// handleEditFile handles PUT /api/editor/files/{name}
func (s *Server) handleEditFile(w http.ResponseWriter, r *http.Request) {
	var req FileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, r, "invalid request body", errors.Wrap(errBadRequest, err.Error()))
		return
	}
	if err := s.editor.EditContent(mux.Vars(r)["name"], req.Content); err != nil {
		s.writeErrorResponse(w, r, "failed to edit file", err)
		return
	}
	s.writeJSONResponse(w, r, s.editorSnapshot())
}

// handleDiff handles GET /api/editor/diff
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/x-diff; charset=utf-8")
	if _, err := w.Write([]byte(s.editor.Diff())); err != nil {
		logger.G(r.Context()).WithError(err).Warn("failed to write diff")
	}
}

// handleRevert handles POST /api/editor/revert
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	s.editor.Revert()
	s.writeJSONResponse(w, r, s.editorSnapshot())
}

// handleCommit handles POST /api/editor/commit
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if err := s.editor.Commit(r.Context()); err != nil {
		s.writeErrorResponse(w, r, "failed to commit edits", err)
		return
	}
	s.writeJSONResponse(w, r, s.editorSnapshot())
}
