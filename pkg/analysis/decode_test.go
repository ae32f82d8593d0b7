package analysis

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

const validResponse = `{
  "slug": "invoice-sorter",
  "frontmatter": {"name": "Invoice Sorter", "description": "Use when sorting PDF invoices by vendor"},
  "body": "# Invoice Sorter\n...",
  "resources": [{"filename": "sort.py", "type": "script", "content": "print('x')", "language": "python"}]
}`

func TestDecodeValid(t *testing.T) {
	pkg, err := Decode(validResponse)
	require.NoError(t, err)
	assert.Equal(t, "invoice-sorter", pkg.Slug)
	assert.Equal(t, skill.Frontmatter{Name: "Invoice Sorter", Description: "Use when sorting PDF invoices by vendor"}, pkg.Frontmatter)
	require.Len(t, pkg.Resources, 1)
	assert.Equal(t, skill.SkillFile{Filename: "sort.py", Type: skill.FileTypeScript, Content: "print('x')", Language: "python"}, pkg.Resources[0])
}

func TestDecodeEmptyResources(t *testing.T) {
	pkg, err := Decode(`{"slug":"a","frontmatter":{"name":"A","description":"d"},"body":"","resources":[]}`)
	require.NoError(t, err)
	assert.Empty(t, pkg.Resources)
	assert.Equal(t, 1, pkg.FileCount())
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
		msg  string
	}{
		{"blank", "  \n", KindEmptyResponse, "no text"},
		{"not json", "Sorry, I cannot help with that.", KindEmptyResponse, "not JSON"},
		{"array", `[1,2]`, KindSchemaViolation, "not an object"},
		{"missing keys", `{"slug":"a","frontmatter":{"name":"A"}}`, KindSchemaViolation, "missing frontmatter.description"},
		{"missing resource field", `{"slug":"a","frontmatter":{"name":"A","description":"d"},"body":"","resources":[{"filename":"x","type":"script"}]}`, KindSchemaViolation, "missing resources[0].content"},
		{"wrong type", `{"slug":7,"frontmatter":{"name":"A","description":"d"},"body":"","resources":[]}`, KindSchemaViolation, "does not match"},
		{"unknown resource type", `{"slug":"a","frontmatter":{"name":"A","description":"d"},"body":"","resources":[{"filename":"x","type":"binary","content":""}]}`, KindSchemaViolation, "not one of"},
		{"empty slug", `{"slug":"","frontmatter":{"name":"A","description":"d"},"body":"","resources":[]}`, KindSchemaViolation, "slug is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDecodeMalformedWrapsSentinel(t *testing.T) {
	_, err := Decode(`{"slug":"a","frontmatter":{"name":"","description":"d"},"body":"","resources":[]}`)
	assert.True(t, errors.Is(err, skill.ErrMalformed))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	err := errors.Wrap(newError(KindService, errors.New("quota")), "outer")
	assert.True(t, IsKind(err, KindService))
	assert.False(t, IsKind(err, KindEmptyResponse))
}
