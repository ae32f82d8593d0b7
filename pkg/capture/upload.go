package capture

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// DefaultMaxSize is the upload limit used when none is configured.
const DefaultMaxSize int64 = 200 << 20

var mimeByExtension = map[string]string{
	".webm": "video/webm",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// DetectMIME guesses the media type of data named name. The extension wins
// over content sniffing.
func DetectMIME(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if m, ok := mimeByExtension[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		return stripParams(m)
	}
	return stripParams(http.DetectContentType(data))
}

// Accepted reports whether mimeType can be analyzed: any video or image, or a PDF.
func Accepted(mimeType string) bool {
	m := stripParams(mimeType)
	return strings.HasPrefix(m, "video/") || strings.HasPrefix(m, "image/") || m == "application/pdf"
}

// FromFile reads an uploaded file into an artifact.
func FromFile(path string, maxSize int64) (*skill.MediaArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open media file")
	}
	defer f.Close()

	limit := effectiveLimit(maxSize)
	if info, err := f.Stat(); err == nil && info.Size() > limit {
		return nil, errors.Wrapf(ErrTooLarge, "%s is %d bytes, limit is %d", path, info.Size(), limit)
	}

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read media file")
	}
	return FromBytes(data, filepath.Base(path), "", maxSize)
}

// FromBytes turns uploaded bytes into an artifact. declaredType, when set,
// is trusted over detection.
func FromBytes(data []byte, name, declaredType string, maxSize int64) (*skill.MediaArtifact, error) {
	limit := effectiveLimit(maxSize)
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrTooLarge, "%s exceeds %d bytes", name, limit)
	}
	if len(data) == 0 {
		return nil, &CaptureError{Kind: EmptyRecording, Err: errors.Errorf("%s is empty", name)}
	}

	mimeType := stripParams(declaredType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = DetectMIME(name, data)
	}
	if !Accepted(mimeType) {
		return nil, errors.Wrapf(ErrUnsupportedMedia, "%s (%s)", name, mimeType)
	}
	return skill.NewMediaArtifact(data, mimeType, name), nil
}

func effectiveLimit(maxSize int64) int64 {
	if maxSize <= 0 {
		return DefaultMaxSize
	}
	return maxSize
}

func stripParams(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(strings.ToLower(m))
}
