package editor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jingkaihe/skillforge/pkg/analysis"
	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/history"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
	"github.com/jingkaihe/skillforge/pkg/workflow"
)

func sorter() skill.SkillPackage {
	return skill.SkillPackage{
		Slug:        "invoice-sorter",
		Frontmatter: skill.Frontmatter{Name: "Invoice Sorter", Description: "Use when sorting PDF invoices by vendor"},
		Body:        "# Invoice Sorter\n...",
		Resources: []skill.SkillFile{
			{Filename: "sort.py", Type: skill.FileTypeScript, Content: "print('x')"},
			{Filename: "vendors.md", Type: skill.FileTypeReference, Content: "| vendor |"},
			{Filename: "sort.py", Type: skill.FileTypeAsset, Content: "sample"},
		},
	}
}

func setup(t *testing.T) (*workflow.Controller, *Editor, *history.MemoryBackend) {
	t.Helper()
	first := skill.NewGeneratedSkill(sorter(), "", time.Now())
	second := skill.NewGeneratedSkill(sorter(), "", time.Now())
	second.Package.Slug = "second"

	backend := history.NewMemoryBackend(first, second)
	store, err := history.Open(context.Background(), backend)
	require.NoError(t, err)

	gen := analysis.GeneratorFunc(func(context.Context, []byte, string, string) (*analysis.Result, error) {
		return nil, errors.New("unused")
	})
	c := workflow.New(workflow.Config{Generator: gen, History: store})
	e := Attach(c)

	_, err = c.SelectFromHistory(first.ID)
	require.NoError(t, err)
	return c, e, backend
}

func packed(t *testing.T, p skill.SkillPackage) map[string]string {
	t.Helper()
	data, err := archive.Pack(context.Background(), p)
	require.NoError(t, err)
	out := map[string]string{}
	for _, entry := range archive.Entries(p) {
		out[entry.Path] = entry.Content
	}
	unpacked, err := archive.Unpack(data)
	require.NoError(t, err)
	for _, f := range unpacked.Resources {
		assert.Equal(t, out[p.Slug+"/"+f.Path()], f.Content)
	}
	return out
}

func TestFilesAndActiveSelection(t *testing.T) {
	_, e, _ := setup(t)

	assert.Equal(t, []string{"SKILL.md", "scripts/sort.py", "references/vendors.md", "assets/sort.py"}, e.Files())
	assert.Equal(t, "SKILL.md", e.ActiveFile())

	require.NoError(t, e.SetActiveFile("sort.py"))
	assert.Equal(t, "scripts/sort.py", e.ActiveFile(), "a bare filename picks the first match")

	require.NoError(t, e.SetActiveFile("assets/sort.py"))
	content, err := e.Content("")
	require.NoError(t, err)
	assert.Equal(t, "sample", content)

	require.NoError(t, e.SetActiveFile(DocumentAlias))
	assert.Equal(t, "SKILL.md", e.ActiveFile())

	assert.True(t, errors.Is(e.SetActiveFile("scripts/missing.py"), ErrUnknownFile))
	assert.Equal(t, "SKILL.md", e.ActiveFile())
}

func TestEditResourceIsExported(t *testing.T) {
	_, e, _ := setup(t)

	require.NoError(t, e.EditContent("scripts/sort.py", "print('y')"))
	pkg, err := e.Package()
	require.NoError(t, err)

	files := packed(t, pkg)
	assert.Equal(t, "print('y')", files["invoice-sorter/scripts/sort.py"])
	assert.Equal(t, "sample", files["invoice-sorter/assets/sort.py"])
}

func TestEditDocumentKeepsHeader(t *testing.T) {
	_, e, _ := setup(t)

	require.NoError(t, e.EditContent("SKILL.md", "---\nname: Hijacked\n---\n# New body"))
	pkg, err := e.Package()
	require.NoError(t, err)
	assert.Equal(t, sorter().Frontmatter, pkg.Frontmatter)

	doc := packed(t, pkg)["invoice-sorter/SKILL.md"]
	assert.True(t, strings.HasPrefix(doc, "---\nname: Invoice Sorter\ndescription: Use when sorting PDF invoices by vendor\n---\n\n"))
	assert.True(t, strings.HasSuffix(doc, "# New body"))
}

func TestDirtyIsStructural(t *testing.T) {
	_, e, _ := setup(t)
	assert.False(t, e.Dirty())

	require.NoError(t, e.EditContent("vendors.md", "changed"))
	assert.True(t, e.Dirty())

	require.NoError(t, e.EditContent("vendors.md", "| vendor |"))
	assert.False(t, e.Dirty(), "restoring the text clears the flag")

	require.NoError(t, e.EditContent("document", "# other"))
	assert.True(t, e.Dirty())
	e.Revert()
	assert.False(t, e.Dirty())
	body, err := e.Content("SKILL.md")
	require.NoError(t, err)
	assert.Equal(t, "# Invoice Sorter\n...", body)
}

func TestCommit(t *testing.T) {
	c, e, backend := setup(t)
	id := e.ID()

	require.NoError(t, e.Commit(context.Background()))
	assert.Zero(t, backend.Saves(), "clean commit is a no-op")

	require.NoError(t, e.EditContent("scripts/sort.py", "print('y')"))
	require.NoError(t, e.Commit(context.Background()))
	assert.False(t, e.Dirty())
	assert.Equal(t, 1, backend.Saves())

	assert.Equal(t, "print('y')", c.Current().Package.Resources[0].Content)
	stored, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, stored[0].ID, "entry replaced in place")
	assert.Equal(t, "print('y')", stored[0].Package.Resources[0].Content)
}

func TestDiff(t *testing.T) {
	_, e, _ := setup(t)
	assert.Empty(t, e.Diff())

	require.NoError(t, e.EditContent("sort.py", "print('y')"))
	diff := e.Diff()
	assert.Contains(t, diff, "--- a/invoice-sorter/scripts/sort.py")
	assert.Contains(t, diff, "-print('x')")
	assert.Contains(t, diff, "+print('y')")
	assert.NotContains(t, diff, "SKILL.md")
}

func TestReseedOnDisplayChange(t *testing.T) {
	c, e, _ := setup(t)
	require.NoError(t, e.EditContent("sort.py", "unsaved"))

	second := c.History()[1]
	_, err := c.SelectFromHistory(second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, e.ID())
	assert.False(t, e.Dirty(), "unsaved edits are discarded")

	require.NoError(t, c.StartNew())
	assert.Empty(t, e.ID())
	assert.Nil(t, e.Files())
	assert.True(t, errors.Is(e.EditContent("sort.py", "x"), ErrNoPackage))
	assert.True(t, errors.Is(e.Commit(context.Background()), ErrNoPackage))
}

func TestPropertyEditedContentIsExported(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := New(nil)
		g := skill.NewGeneratedSkill(sorter(), "", time.Now())
		e.Seed(&g)

		files := e.Files()[1:]
		last := map[string]string{}
		for i, n := 0, rapid.IntRange(1, 10).Draw(rt, "edits"); i < n; i++ {
			name := rapid.SampledFrom(files).Draw(rt, "file")
			text := rapid.String().Draw(rt, "text")
			if err := e.EditContent(name, text); err != nil {
				rt.Fatalf("edit %s: %v", name, err)
			}
			last[name] = text
		}

		pkg, err := e.Package()
		if err != nil {
			rt.Fatalf("package: %v", err)
		}
		entries := map[string]string{}
		for _, entry := range archive.Entries(pkg) {
			entries[entry.Path] = entry.Content
		}
		for name, text := range last {
			if got := entries["invoice-sorter/"+name]; got != text {
				rt.Fatalf("%s exported %q, want %q", name, got, text)
			}
		}
	})
}
