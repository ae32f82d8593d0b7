package skill

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePackage() SkillPackage {
	return SkillPackage{
		Slug: "invoice-sorter",
		Frontmatter: Frontmatter{
			Name:        "Invoice Sorter",
			Description: "Use when sorting PDF invoices by vendor",
		},
		Body: "# Invoice Sorter\n...",
		Resources: []SkillFile{
			{Filename: "sort.py", Type: FileTypeScript, Content: "print('x')", Language: "python"},
			{Filename: "vendors.md", Type: FileTypeReference, Content: "| vendor |"},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *SkillPackage)
		contains []string
	}{
		{name: "well-formed", mutate: func(*SkillPackage) {}},
		{name: "no resources", mutate: func(p *SkillPackage) { p.Resources = nil }},
		{
			name:     "missing slug",
			mutate:   func(p *SkillPackage) { p.Slug = "  " },
			contains: []string{"slug is required"},
		},
		{
			name:     "slug with separator",
			mutate:   func(p *SkillPackage) { p.Slug = "a/b" },
			contains: []string{"single path segment"},
		},
		{
			name: "missing frontmatter",
			mutate: func(p *SkillPackage) {
				p.Frontmatter = Frontmatter{}
			},
			contains: []string{"frontmatter.name is required", "frontmatter.description is required"},
		},
		{
			name:     "unknown type",
			mutate:   func(p *SkillPackage) { p.Resources[0].Type = "binary" },
			contains: []string{`resources[0].type "binary"`},
		},
		{
			name:     "empty filename",
			mutate:   func(p *SkillPackage) { p.Resources[1].Filename = "" },
			contains: []string{"resources[1].filename is required"},
		},
		{
			name:     "escaping filename",
			mutate:   func(p *SkillPackage) { p.Resources[1].Filename = "../etc/passwd" },
			contains: []string{"must be a relative path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePackage()
			tt.mutate(&p)
			err := p.Validate()
			if len(tt.contains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestFileCountAndSummary(t *testing.T) {
	p := samplePackage()
	g := NewGeneratedSkill(p, `{"slug":"invoice-sorter"}`, time.Unix(100, 0))

	assert.NotEmpty(t, g.ID)
	assert.Equal(t, 3, p.FileCount())

	s := g.Summarize()
	assert.Equal(t, g.ID, s.ID)
	assert.Equal(t, "invoice-sorter", s.Slug)
	assert.Equal(t, p.FileCount(), s.FileCount)
}

func TestCloneIsDeep(t *testing.T) {
	p := samplePackage()
	c := p.Clone()
	c.Resources[0].Content = "changed"

	assert.Equal(t, "print('x')", p.Resources[0].Content)
}

func TestFileTypeDirs(t *testing.T) {
	for _, ft := range FileTypes {
		got, ok := FileTypeForDir(ft.Dir())
		require.True(t, ok)
		assert.Equal(t, ft, got)
	}
	_, ok := FileTypeForDir("bin")
	assert.False(t, ok)
	assert.Equal(t, "scripts/sort.py", SkillFile{Filename: "sort.py", Type: FileTypeScript}.Path())
}

func TestMediaArtifactCopiesInput(t *testing.T) {
	data := []byte("abc")
	a := NewMediaArtifact(data, " video/webm ", "recording")
	data[0] = 'z'

	assert.Equal(t, []byte("abc"), a.Data())
	assert.Equal(t, "video/webm", a.MIMEType())
	assert.Equal(t, 3, a.Size())
}
