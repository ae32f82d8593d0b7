package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const (
	headerOpen  = "---\n"
	headerClose = "\n---\n\n"
	nameKey     = "name: "
	descKey     = "\ndescription: "
)

// ParseDocument splits a rendered SKILL.md back into frontmatter and body.
// It accepts exactly the layout produced by RenderDocument.
func ParseDocument(doc string) (skill.Frontmatter, string, error) {
	if !strings.HasPrefix(doc, headerOpen+nameKey) {
		return skill.Frontmatter{}, "", errors.New("document does not start with a name header")
	}
	rest := doc[len(headerOpen):]

	end := strings.Index(rest, headerClose)
	if end < 0 {
		return skill.Frontmatter{}, "", errors.New("document header is not terminated")
	}
	header, body := rest[:end], rest[end+len(headerClose):]

	i := strings.Index(header, descKey)
	if i < 0 {
		return skill.Frontmatter{}, "", errors.New("document header has no description")
	}

	return skill.Frontmatter{
		Name:        header[len(nameKey):i],
		Description: header[i+len(descKey):],
	}, body, nil
}

// Unpack reads an archive produced by Pack back into a package. Resource
// languages are inferred from file extensions since the archive does not
// carry them.
func Unpack(data []byte) (skill.SkillPackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return skill.SkillPackage{}, errors.Wrap(err, "failed to open archive")
	}

	var (
		pkg     skill.SkillPackage
		haveDoc bool
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		root, rel, ok := strings.Cut(f.Name, "/")
		if !ok || root == "" {
			return skill.SkillPackage{}, errors.Errorf("archive entry %s is outside a skill directory", f.Name)
		}
		if pkg.Slug == "" {
			pkg.Slug = root
		} else if pkg.Slug != root {
			return skill.SkillPackage{}, errors.Errorf("archive contains more than one skill directory: %s and %s", pkg.Slug, root)
		}

		content, err := readEntry(f)
		if err != nil {
			return skill.SkillPackage{}, err
		}

		if rel == skill.DocumentFile {
			fm, body, err := ParseDocument(content)
			if err != nil {
				return skill.SkillPackage{}, errors.Wrapf(err, "invalid %s", f.Name)
			}
			pkg.Frontmatter, pkg.Body = fm, body
			haveDoc = true
			continue
		}

		dir, filename, ok := strings.Cut(rel, "/")
		ft, known := skill.FileTypeForDir(dir)
		if !ok || !known {
			return skill.SkillPackage{}, errors.Errorf("unexpected archive entry %s", f.Name)
		}
		pkg.Resources = append(pkg.Resources, skill.SkillFile{
			Filename: filename,
			Content:  content,
			Type:     ft,
			Language: LanguageFor(filename),
		})
	}

	if !haveDoc {
		return skill.SkillPackage{}, errors.Errorf("archive has no %s", skill.DocumentFile)
	}
	return pkg, nil
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", errors.Wrapf(err, "failed to open archive entry %s", f.Name)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read archive entry %s", f.Name)
	}
	return string(b), nil
}

var languages = map[string]string{
	".py":   "python",
	".sh":   "bash",
	".bash": "bash",
	".js":   "javascript",
	".ts":   "typescript",
	".go":   "go",
	".rb":   "ruby",
	".sql":  "sql",
	".md":   "markdown",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".html": "html",
	".csv":  "csv",
	".txt":  "text",
}

// LanguageFor guesses a syntax highlighting tag from a file name.
func LanguageFor(filename string) string {
	return languages[strings.ToLower(path.Ext(filename))]
}
