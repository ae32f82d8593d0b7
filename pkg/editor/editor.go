// Package editor holds a mutable working copy of the displayed skill
// package and commits it back through the workflow controller.
package editor

import (
	"context"
	"strings"
	"sync"

	"github.com/aymanbagabas/go-udiff"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// DocumentAlias also names the document file.
const DocumentAlias = "document"

var (
	// ErrNoPackage is returned when no package is loaded.
	ErrNoPackage = errors.New("no package is open")
	// ErrUnknownFile is returned for names that match no file of the package.
	ErrUnknownFile = errors.New("no such file in package")
)

// Committer stores a new canonical package for an identifier.
type Committer interface {
	CommitEdit(ctx context.Context, id string, pkg skill.SkillPackage) (*skill.GeneratedSkill, error)
}

// Source is a Committer that also reports display changes, such as
// *workflow.Controller.
type Source interface {
	Committer
	Current() *skill.GeneratedSkill
	OnDisplayChange(func(*skill.GeneratedSkill))
}

// Editor is the working copy. File names are archive-relative paths:
// SKILL.md for the document and scripts/, references/ or assets/ followed
// by the resource filename. A bare filename selects the first resource
// with that filename. Editing the document only changes its body.
type Editor struct {
	mu        sync.Mutex
	committer Committer

	id     string
	loaded bool
	base   skill.SkillPackage
	work   skill.SkillPackage
	active string
}

// New creates an editor that commits through c and is not seeded.
func New(c Committer) *Editor {
	return &Editor{committer: c, active: skill.DocumentFile}
}

// Attach creates an editor that follows the package displayed by src and
// reseeds, discarding unsaved edits, whenever that package changes.
func Attach(src Source) *Editor {
	e := New(src)
	e.Seed(src.Current())
	src.OnDisplayChange(e.Seed)
	return e
}

// Seed replaces the working copy with g, or unloads it when g is nil.
func (e *Editor) Seed(g *skill.GeneratedSkill) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = skill.DocumentFile
	if g == nil {
		e.id, e.loaded = "", false
		e.base, e.work = skill.SkillPackage{}, skill.SkillPackage{}
		return
	}
	e.id, e.loaded = g.ID, true
	e.base = g.Package.Clone()
	e.work = g.Package.Clone()
}

// ID returns the identifier of the loaded package, or "".
func (e *Editor) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Package returns a copy of the working copy.
func (e *Editor) Package() (skill.SkillPackage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return skill.SkillPackage{}, ErrNoPackage
	}
	return e.work.Clone(), nil
}

// Files lists the editable files, the document first.
func (e *Editor) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil
	}
	files := []string{skill.DocumentFile}
	for _, f := range e.work.Resources {
		files = append(files, f.Path())
	}
	return files
}

// ActiveFile returns the selected file. It defaults to the document.
func (e *Editor) ActiveFile() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetActiveFile selects the file being viewed or edited.
func (e *Editor) SetActiveFile(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, err := e.resolve(name)
	if err != nil {
		return err
	}
	if i < 0 {
		e.active = skill.DocumentFile
	} else {
		e.active = e.work.Resources[i].Path()
	}
	return nil
}

// Content returns the editable text of name: the body for the document,
// the content for a resource. An empty name means the active file.
func (e *Editor) Content(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, err := e.resolve(e.orActive(name))
	if err != nil {
		return "", err
	}
	if i < 0 {
		return e.work.Body, nil
	}
	return e.work.Resources[i].Content, nil
}

// EditContent replaces the editable text of name. An empty name means the
// active file.
func (e *Editor) EditContent(name, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, err := e.resolve(e.orActive(name))
	if err != nil {
		return err
	}
	if i < 0 {
		e.work.Body = text
	} else {
		e.work.Resources[i].Content = text
	}
	return nil
}

// Dirty reports whether the working copy differs from the last commit.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty()
}

func (e *Editor) dirty() bool {
	return e.loaded && !cmp.Equal(e.base, e.work, cmpopts.EquateEmpty())
}

// Diff renders the pending edits as a unified diff, one file after the other.
func (e *Editor) Diff() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty() {
		return ""
	}

	var sb strings.Builder
	if e.base.Body != e.work.Body {
		doc := e.base.Slug + "/" + skill.DocumentFile
		sb.WriteString(udiff.Unified("a/"+doc, "b/"+doc, archive.RenderDocument(e.base), archive.RenderDocument(e.work)))
	}
	for i, f := range e.work.Resources {
		old := e.base.Resources[i].Content
		if old == f.Content {
			continue
		}
		name := e.base.Slug + "/" + f.Path()
		sb.WriteString(udiff.Unified("a/"+name, "b/"+name, old, f.Content))
	}
	return sb.String()
}

// Revert drops every pending edit.
func (e *Editor) Revert() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.work = e.base.Clone()
}

// Commit pushes the working copy back as the canonical package. It is a
// no-op when nothing changed.
func (e *Editor) Commit(ctx context.Context) error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return ErrNoPackage
	}
	if !e.dirty() {
		e.mu.Unlock()
		return nil
	}
	id, work := e.id, e.work.Clone()
	e.mu.Unlock()

	updated, err := e.committer.CommitEdit(ctx, id, work)
	if err != nil {
		return errors.Wrap(err, "failed to commit edits")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == updated.ID {
		e.base = updated.Package.Clone()
	}
	return nil
}

func (e *Editor) orActive(name string) string {
	if name == "" {
		return e.active
	}
	return name
}

// resolve maps name to a resource index, or -1 for the document.
func (e *Editor) resolve(name string) (int, error) {
	if !e.loaded {
		return 0, ErrNoPackage
	}
	if name == skill.DocumentFile || name == DocumentAlias {
		return -1, nil
	}
	for i, f := range e.work.Resources {
		if f.Path() == name {
			return i, nil
		}
	}
	for i, f := range e.work.Resources {
		if f.Filename == name {
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownFile, "%s", name)
}
