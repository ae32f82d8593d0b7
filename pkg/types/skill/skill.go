// Package skill defines the skill package data model shared by the
// analysis gateway, the workflow controller, the editor, the archiver and
// the history store.
package skill

import (
	"path"
	"time"

	"github.com/google/uuid"
)

// FileType is the bucket a resource file belongs to inside a skill package.
type FileType string

const (
	// FileTypeScript is an executable helper stored under scripts/
	FileTypeScript FileType = "script"
	// FileTypeReference is supporting documentation stored under references/
	FileTypeReference FileType = "reference"
	// FileTypeAsset is any other bundled file stored under assets/
	FileTypeAsset FileType = "asset"
)

// FileTypes lists the closed set of resource types in archive order.
var FileTypes = []FileType{FileTypeScript, FileTypeReference, FileTypeAsset}

// Valid reports whether t belongs to the closed set of resource types.
func (t FileType) Valid() bool {
	switch t {
	case FileTypeScript, FileTypeReference, FileTypeAsset:
		return true
	}
	return false
}

// Dir returns the archive subdirectory for the type.
func (t FileType) Dir() string {
	switch t {
	case FileTypeScript:
		return "scripts"
	case FileTypeReference:
		return "references"
	case FileTypeAsset:
		return "assets"
	}
	return ""
}

// FileTypeForDir maps an archive subdirectory back to its resource type.
func FileTypeForDir(dir string) (FileType, bool) {
	for _, t := range FileTypes {
		if t.Dir() == dir {
			return t, true
		}
	}
	return "", false
}

// DocumentFile is the name of the document file at the package root.
const DocumentFile = "SKILL.md"

// Frontmatter is the required metadata header of the document file.
type Frontmatter struct {
	Name        string `json:"name" yaml:"name" jsonschema:"description=Display name of the skill"`
	Description string `json:"description" yaml:"description" jsonschema:"description=Trigger-focused description explaining when to use the skill"`
}

// SkillFile is an auxiliary file bundled alongside the document.
type SkillFile struct {
	Filename string   `json:"filename" yaml:"filename" jsonschema:"description=File name relative to its type directory"`
	Content  string   `json:"content" yaml:"content"`
	Type     FileType `json:"type" yaml:"type" jsonschema:"enum=script,enum=reference,enum=asset"`
	Language string   `json:"language,omitempty" yaml:"language,omitempty" jsonschema:"description=Language tag used for syntax highlighting"`
}

// Path returns the archive-relative path of the file, e.g. scripts/sort.py.
func (f SkillFile) Path() string {
	return path.Join(f.Type.Dir(), f.Filename)
}

// SkillPackage is the structured document plus resource bundle describing
// one reusable automation procedure.
type SkillPackage struct {
	Slug        string      `json:"slug" yaml:"slug" jsonschema:"description=Hyphen-case folder name of the skill"`
	Frontmatter Frontmatter `json:"frontmatter" yaml:"frontmatter"`
	Body        string      `json:"body" yaml:"body" jsonschema:"description=Markdown body of SKILL.md without the frontmatter"`
	Resources   []SkillFile `json:"resources" yaml:"resources"`
}

// FileCount is the number of files the package exports: the document plus
// every resource.
func (p SkillPackage) FileCount() int {
	return len(p.Resources) + 1
}

// Clone returns a deep copy of the package.
func (p SkillPackage) Clone() SkillPackage {
	c := p
	if p.Resources != nil {
		c.Resources = make([]SkillFile, len(p.Resources))
		copy(c.Resources, p.Resources)
	}
	return c
}

// ResourcesOfType returns the resources with the given type in list order.
func (p SkillPackage) ResourcesOfType(t FileType) []SkillFile {
	var files []SkillFile
	for _, f := range p.Resources {
		if f.Type == t {
			files = append(files, f)
		}
	}
	return files
}

// GeneratedSkill wraps one package produced by an analysis call.
type GeneratedSkill struct {
	ID          string       `json:"id" yaml:"id"`
	CreatedAt   time.Time    `json:"createdAt" yaml:"createdAt"`
	Package     SkillPackage `json:"skillPackage" yaml:"skillPackage"`
	RawResponse string       `json:"rawResponse,omitempty" yaml:"rawResponse,omitempty"`
}

// NewGeneratedSkill stamps a package with a fresh identifier and creation time.
func NewGeneratedSkill(pkg SkillPackage, raw string, now time.Time) GeneratedSkill {
	return GeneratedSkill{
		ID:          uuid.New().String(),
		CreatedAt:   now,
		Package:     pkg,
		RawResponse: raw,
	}
}

// Clone returns a deep copy of the generated skill.
func (g GeneratedSkill) Clone() GeneratedSkill {
	c := g
	c.Package = g.Package.Clone()
	return c
}

// Summary is a compact description of a generated skill used in listings.
type Summary struct {
	ID          string    `json:"id" yaml:"id"`
	Slug        string    `json:"slug" yaml:"slug"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	FileCount   int       `json:"fileCount" yaml:"fileCount"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
}

// Summarize builds the listing summary of a generated skill.
func (g GeneratedSkill) Summarize() Summary {
	return Summary{
		ID:          g.ID,
		Slug:        g.Package.Slug,
		Name:        g.Package.Frontmatter.Name,
		Description: g.Package.Frontmatter.Description,
		FileCount:   g.Package.FileCount(),
		CreatedAt:   g.CreatedAt,
	}
}
