package skill

import (
	"fmt"
	"strings"
)

// MediaArtifact is the captured or uploaded binary media submitted for
// analysis. It is never mutated after it has been produced.
type MediaArtifact struct {
	data     []byte
	mimeType string
	source   string
}

// NewMediaArtifact copies data into a new artifact. source is a free-form
// label (file path, "recording") used only for display and logging.
func NewMediaArtifact(data []byte, mimeType, source string) *MediaArtifact {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &MediaArtifact{
		data:     buf,
		mimeType: strings.TrimSpace(mimeType),
		source:   source,
	}
}

// Data returns the artifact bytes. Callers must not modify the slice.
func (a *MediaArtifact) Data() []byte { return a.data }

// MIMEType returns the media type, e.g. video/webm.
func (a *MediaArtifact) MIMEType() string { return a.mimeType }

// Size returns the byte size of the artifact.
func (a *MediaArtifact) Size() int { return len(a.data) }

// Source returns where the artifact came from.
func (a *MediaArtifact) Source() string { return a.source }

// String renders a short human readable description.
func (a *MediaArtifact) String() string {
	return fmt.Sprintf("%s (%s, %.2f MB)", a.source, a.mimeType, float64(a.Size())/(1024*1024))
}
