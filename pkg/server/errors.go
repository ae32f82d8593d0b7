package server

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/analysis"
	"github.com/jingkaihe/skillforge/pkg/capture"
	"github.com/jingkaihe/skillforge/pkg/editor"
	"github.com/jingkaihe/skillforge/pkg/history"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/workflow"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Detail  string `json:"detail,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Status  int    `json:"status"`
	Success bool   `json:"success"`
}

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	var (
		te *workflow.TransitionError
		ae *analysis.Error
		ce *capture.CaptureError
	)
	switch {
	case errors.As(err, &te),
		errors.Is(err, workflow.ErrNotDisplayed),
		errors.Is(err, editor.ErrNoPackage):
		return http.StatusConflict
	case errors.Is(err, history.ErrNotFound),
		errors.Is(err, editor.ErrUnknownFile):
		return http.StatusNotFound
	case errors.As(err, &ae):
		return http.StatusBadGateway
	case errors.Is(err, capture.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, capture.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, workflow.ErrNoRecorder):
		return http.StatusNotImplemented
	case errors.As(err, &ce):
		if ce.Kind == capture.EmptyRecording {
			return http.StatusBadRequest
		}
		return http.StatusServiceUnavailable
	case errors.Is(err, skill.ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	if kind := analysis.KindOf(err); kind != "" {
		return string(kind)
	}
	var ce *capture.CaptureError
	if errors.As(err, &ce) {
		return string(ce.Kind)
	}
	return ""
}
