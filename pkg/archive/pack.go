// Package archive serializes skill packages into zip archives with a fixed
// directory layout:
//
//	<slug>/SKILL.md
//	<slug>/scripts/<filename>
//	<slug>/references/<filename>
//	<slug>/assets/<filename>
//
// The SKILL.md header is rendered from the frontmatter at pack time. Output
// is byte-for-byte deterministic for a given package.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const (
	// Extension is the file extension of exported archives.
	Extension = ".zip"
	// MIMEType is the content type of exported archives.
	MIMEType = "application/zip"
)

// modTime is stamped on every entry so repeated packs are identical.
var modTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry is one file of the archive layout.
type Entry struct {
	// Path is relative to the archive root and starts with the slug.
	Path    string
	Content string
}

// Filename returns the download name of the package archive.
func Filename(p skill.SkillPackage) string {
	return p.Slug + Extension
}

// RenderDocument synthesizes SKILL.md: the name/description header, a
// separator line, then the body verbatim.
func RenderDocument(p skill.SkillPackage) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("name: " + p.Frontmatter.Name + "\n")
	b.WriteString("description: " + p.Frontmatter.Description + "\n")
	b.WriteString("---\n\n")
	b.WriteString(p.Body)
	return b.String()
}

// Entries returns the archive layout of p in write order: the document,
// then scripts, references and assets, each in resource list order. When
// two resources map to the same path the later content wins and the entry
// keeps the position of the first occurrence.
func Entries(p skill.SkillPackage) []Entry {
	entries := []Entry{{Path: path.Join(p.Slug, skill.DocumentFile), Content: RenderDocument(p)}}
	index := map[string]int{}

	for _, ft := range skill.FileTypes {
		for _, f := range p.ResourcesOfType(ft) {
			name := path.Join(p.Slug, f.Path())
			if i, ok := index[name]; ok {
				entries[i].Content = f.Content
				continue
			}
			index[name] = len(entries)
			entries = append(entries, Entry{Path: name, Content: f.Content})
		}
	}
	return entries
}

// Pack serializes p into zip bytes.
func Pack(ctx context.Context, p skill.SkillPackage) ([]byte, error) {
	var buf bytes.Buffer
	err := telemetry.WithSpan(ctx, "archive.pack", func(ctx context.Context) error {
		return WriteTo(ctx, &buf, p)
	}, attribute.String("skill.slug", p.Slug), attribute.Int("skill.files", p.FileCount()))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo streams the zip archive of p into w. A package that fails
// validation is rejected: callers are expected to only hold well-formed
// packages.
func WriteTo(ctx context.Context, w io.Writer, p skill.SkillPackage) error {
	if err := p.Validate(); err != nil {
		return errors.Wrap(err, "refusing to pack skill")
	}

	zw := zip.NewWriter(w)
	dirs := map[string]bool{}

	for _, e := range Entries(p) {
		if err := writeDirs(zw, dirs, path.Dir(e.Path)); err != nil {
			return err
		}

		hdr := &zip.FileHeader{Name: e.Path, Method: zip.Deflate, Modified: modTime}
		hdr.SetMode(0o644)
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return errors.Wrapf(err, "failed to create archive entry %s", e.Path)
		}
		if _, err := io.WriteString(fw, e.Content); err != nil {
			return errors.Wrapf(err, "failed to write archive entry %s", e.Path)
		}
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize archive")
	}

	logger.G(ctx).WithField("slug", p.Slug).WithField("files", p.FileCount()).Debug("packed skill archive")
	return nil
}

// writeDirs emits explicit directory entries for dir and its parents, once.
func writeDirs(zw *zip.Writer, seen map[string]bool, dir string) error {
	if dir == "." || dir == "" || seen[dir] {
		return nil
	}
	if err := writeDirs(zw, seen, path.Dir(dir)); err != nil {
		return err
	}
	seen[dir] = true

	hdr := &zip.FileHeader{Name: dir + "/", Method: zip.Store, Modified: modTime}
	hdr.SetMode(fs.ModeDir | 0o755)
	if _, err := zw.CreateHeader(hdr); err != nil {
		return errors.Wrapf(err, "failed to create archive directory %s", dir)
	}
	return nil
}
