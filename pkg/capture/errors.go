package capture

import (
	"fmt"

	"github.com/pkg/errors"
)

// FailureKind classifies why a capture could not produce an artifact.
type FailureKind string

const (
	// PermissionDenied means the user declined or the OS refused access.
	PermissionDenied FailureKind = "permission_denied"
	// DeviceUnavailable means the recorder could not be started or crashed.
	DeviceUnavailable FailureKind = "device_unavailable"
	// EmptyRecording means the recorder stopped without producing any bytes.
	EmptyRecording FailureKind = "empty_recording"
)

// CaptureError is returned when capture fails to start or complete.
type CaptureError struct {
	Kind FailureKind
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture failed: %s", e.Kind)
	}
	return fmt.Sprintf("capture failed (%s): %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Declined reports whether err is a permission refusal. A declined capture
// is not reported to the user; it simply does not start.
func Declined(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce) && ce.Kind == PermissionDenied
}

// ErrUnsupportedMedia is returned for uploads that are not video, image or PDF.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// ErrTooLarge is returned for uploads over the configured size limit.
var ErrTooLarge = errors.New("media exceeds the size limit")
