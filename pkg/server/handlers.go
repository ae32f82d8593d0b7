package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/capture"
	"github.com/jingkaihe/skillforge/pkg/history"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/workflow"
)

// MediaResponse describes the media awaiting analysis. The bytes are not
// echoed back.
type MediaResponse struct {
	MIMEType string `json:"mimeType"`
	Size     int    `json:"size"`
	Source   string `json:"source"`
}

// StateResponse is a snapshot of the controller.
type StateResponse struct {
	State   workflow.State        `json:"state"`
	Actions []workflow.Action     `json:"actions"`
	Notes   string                `json:"notes,omitempty"`
	Media   *MediaResponse        `json:"media,omitempty"`
	Current *skill.GeneratedSkill `json:"current,omitempty"`
	Error   string                `json:"error,omitempty"`
	Kind    string                `json:"kind,omitempty"`
}

// NotesRequest is the body of PUT /api/notes.
type NotesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) snapshot() StateResponse {
	c := s.controller
	resp := StateResponse{
		State:   c.State(),
		Actions: c.Actions(),
		Notes:   c.Notes(),
		Current: c.Current(),
	}
	if a := c.Artifact(); a != nil {
		resp.Media = &MediaResponse{MIMEType: a.MIMEType(), Size: a.Size(), Source: a.Source()}
	}
	if err := c.LastError(); err != nil {
		resp.Error = err.Error()
		resp.Kind = errorKind(err)
	}
	return resp
}

// handleState handles GET /api/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleStartCapture handles POST /api/capture/start. A declined
// permission is not an error: the returned state is still idle.
func (s *Server) handleStartCapture(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.StartCapture(r.Context()); err != nil {
		s.writeErrorResponse(w, r, "failed to start capture", err)
		return
	}
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleStopCapture handles POST /api/capture/stop
func (s *Server) handleStopCapture(w http.ResponseWriter, r *http.Request) {
	if _, err := s.controller.StopCapture(r.Context()); err != nil && !capture.Declined(err) {
		s.writeErrorResponse(w, r, "capture failed", err)
		return
	}
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleUpload handles POST /api/upload with a multipart "file" field and
// an optional "notes" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.config.maxUpload()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = errors.Wrap(capture.ErrTooLarge, err.Error())
		} else {
			err = errors.Wrap(errBadRequest, err.Error())
		}
		s.writeErrorResponse(w, r, "invalid upload", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.writeErrorResponse(w, r, "failed to read upload", err)
		return
	}
	artifact, err := capture.FromBytes(data, header.Filename, header.Header.Get("Content-Type"), limit)
	if err != nil {
		s.writeErrorResponse(w, r, "upload rejected", err)
		return
	}
	if err := s.controller.Upload(artifact); err != nil {
		s.writeErrorResponse(w, r, "failed to upload media", err)
		return
	}
	if notes := r.FormValue("notes"); notes != "" {
		if err := s.controller.SetNotes(notes); err != nil {
			s.writeErrorResponse(w, r, "failed to set notes", err)
			return
		}
	}
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleDiscard handles POST /api/discard
func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Discard(); err != nil {
		s.writeErrorResponse(w, r, "failed to discard media", err)
		return
	}
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleSetNotes handles PUT /api/notes
func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	var req NotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, r, "invalid request body", errors.Wrap(errBadRequest, err.Error()))
		return
	}
	if err := s.controller.SetNotes(req.Notes); err != nil {
		s.writeErrorResponse(w, r, "failed to set notes", err)
		return
	}
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleAnalyze handles POST /api/analyze. It blocks until the analysis
// finished, even if the client goes away.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if _, err := s.controller.Analyze(r.Context()); err != nil {
		s.writeErrorResponse(w, r, "analysis failed", err)
		return
	}
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleDismiss handles POST /api/dismiss
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Dismiss(); err != nil {
		s.writeErrorResponse(w, r, "failed to dismiss error", err)
		return
	}
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleStartNew handles POST /api/new
func (s *Server) handleStartNew(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.StartNew(); err != nil {
		s.writeErrorResponse(w, r, "failed to start over", err)
		return
	}
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleExportCurrent handles GET /api/export
func (s *Server) handleExportCurrent(w http.ResponseWriter, r *http.Request) {
	current := s.controller.Current()
	if current == nil {
		s.writeErrorResponse(w, r, "nothing to export", &workflow.TransitionError{State: s.controller.State(), Action: "export"})
		return
	}
	s.writeArchive(w, r, current.Package)
}

// handleListHistory handles GET /api/history
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.controller.History()
	summaries := make([]skill.Summary, 0, len(entries))
	for _, g := range entries {
		summaries = append(summaries, g.Summarize())
	}
	s.writeJSONResponse(w, r, summaries)
}

// handleGetHistory handles GET /api/history/{id}
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	g, err := s.lookup(mux.Vars(r)["id"])
	if err != nil {
		s.writeErrorResponse(w, r, "failed to get history entry", err)
		return
	}
	s.writeJSONResponse(w, r, g)
}

// handleDeleteHistory handles DELETE /api/history/{id}
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.DeleteFromHistory(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeErrorResponse(w, r, "failed to delete history entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSelectHistory handles POST /api/history/{id}/select
func (s *Server) handleSelectHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := s.controller.SelectFromHistory(mux.Vars(r)["id"]); err != nil {
		s.writeErrorResponse(w, r, "failed to select history entry", err)
		return
	}
	s.writeJSONResponse(w, r, s.snapshot())
}

// handleExportHistory handles GET /api/history/{id}/export
func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	g, err := s.lookup(mux.Vars(r)["id"])
	if err != nil {
		s.writeErrorResponse(w, r, "failed to export history entry", err)
		return
	}
	s.writeArchive(w, r, g.Package)
}

func (s *Server) lookup(id string) (skill.GeneratedSkill, error) {
	for _, g := range s.controller.History() {
		if g.ID == id {
			return g, nil
		}
	}
	return skill.GeneratedSkill{}, errors.Wrapf(history.ErrNotFound, "id %s", id)
}

func (s *Server) writeArchive(w http.ResponseWriter, r *http.Request, p skill.SkillPackage) {
	data, err := archive.Pack(r.Context(), p)
	if err != nil {
		s.writeErrorResponse(w, r, "failed to pack skill", err)
		return
	}
	w.Header().Set("Content-Type", archive.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.Filename(p)+`"`)
	if _, err := w.Write(data); err != nil {
		logger.G(r.Context()).WithError(err).Warn("failed to write archive")
	}
}
