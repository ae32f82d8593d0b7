package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

func invoiceSorter() skill.SkillPackage {
	return skill.SkillPackage{
		Slug: "invoice-sorter",
		Frontmatter: skill.Frontmatter{
			Name:        "Invoice Sorter",
			Description: "Use when sorting PDF invoices by vendor",
		},
		Body: "# Invoice Sorter\n...",
		Resources: []skill.SkillFile{
			{Filename: "sort.py", Type: skill.FileTypeScript, Content: "print('x')"},
		},
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(b)
	}
	return files
}

func TestPackInvoiceSorter(t *testing.T) {
	data, err := Pack(context.Background(), invoiceSorter())
	require.NoError(t, err)

	files := readZip(t, data)
	assert.Equal(t, map[string]string{
		"invoice-sorter/SKILL.md":        "---\nname: Invoice Sorter\ndescription: Use when sorting PDF invoices by vendor\n---\n\n# Invoice Sorter\n...",
		"invoice-sorter/scripts/sort.py": "print('x')",
	}, files)
	assert.Equal(t, "invoice-sorter.zip", Filename(invoiceSorter()))
}

func TestPackLayoutOrder(t *testing.T) {
	p := invoiceSorter()
	p.Resources = []skill.SkillFile{
		{Filename: "logo.png", Type: skill.FileTypeAsset, Content: "png"},
		{Filename: "api.md", Type: skill.FileTypeReference, Content: "api"},
		{Filename: "b.sh", Type: skill.FileTypeScript, Content: "b"},
		{Filename: "a.sh", Type: skill.FileTypeScript, Content: "a"},
	}

	data, err := Pack(context.Background(), p)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"invoice-sorter/",
		"invoice-sorter/SKILL.md",
		"invoice-sorter/scripts/",
		"invoice-sorter/scripts/b.sh",
		"invoice-sorter/scripts/a.sh",
		"invoice-sorter/references/",
		"invoice-sorter/references/api.md",
		"invoice-sorter/assets/",
		"invoice-sorter/assets/logo.png",
	}, names)
}

func TestPackOmitsEmptyDirectories(t *testing.T) {
	p := invoiceSorter()
	p.Resources = nil

	data, err := Pack(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, readZip(t, data), 1)
}

func TestPackIsDeterministic(t *testing.T) {
	a, err := Pack(context.Background(), invoiceSorter())
	require.NoError(t, err)
	b, err := Pack(context.Background(), invoiceSorter())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPackDuplicateLastWriteWins(t *testing.T) {
	p := invoiceSorter()
	p.Resources = append(p.Resources,
		skill.SkillFile{Filename: "notes.md", Type: skill.FileTypeReference, Content: "ref"},
		skill.SkillFile{Filename: "sort.py", Type: skill.FileTypeScript, Content: "print('y')"},
	)

	entries := Entries(p)
	require.Len(t, entries, 3)
	assert.Equal(t, "invoice-sorter/scripts/sort.py", entries[1].Path)
	assert.Equal(t, "print('y')", entries[1].Content)

	data, err := Pack(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "print('y')", readZip(t, data)["invoice-sorter/scripts/sort.py"])
}

func TestSameFilenameInDifferentBuckets(t *testing.T) {
	p := invoiceSorter()
	p.Resources = append(p.Resources, skill.SkillFile{Filename: "sort.py", Type: skill.FileTypeAsset, Content: "asset"})

	data, err := Pack(context.Background(), p)
	require.NoError(t, err)
	files := readZip(t, data)
	assert.Equal(t, "print('x')", files["invoice-sorter/scripts/sort.py"])
	assert.Equal(t, "asset", files["invoice-sorter/assets/sort.py"])
}

func TestPackRejectsMalformed(t *testing.T) {
	p := invoiceSorter()
	p.Frontmatter.Name = ""

	_, err := Pack(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, skill.ErrMalformed))
}

func TestUnpack(t *testing.T) {
	p := invoiceSorter()
	data, err := Pack(context.Background(), p)
	require.NoError(t, err)

	got, err := Unpack(data)
	require.NoError(t, err)
	assert.Equal(t, p.Slug, got.Slug)
	assert.Equal(t, p.Frontmatter, got.Frontmatter)
	assert.Equal(t, p.Body, got.Body)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "python", got.Resources[0].Language)
}

func TestUnpackRejectsForeignLayout(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("skill/bin/tool")
	require.NoError(t, err)
	_, _ = w.Write([]byte("x"))
	require.NoError(t, zw.Close())

	_, err = Unpack(buf.Bytes())
	assert.ErrorContains(t, err, "unexpected archive entry")

	_, err = Unpack([]byte("not a zip"))
	assert.Error(t, err)
}

func TestParseDocument(t *testing.T) {
	fm, body, err := ParseDocument("---\nname: A\ndescription: multi\nline\n---\n\n")
	require.NoError(t, err)
	assert.Equal(t, skill.Frontmatter{Name: "A", Description: "multi\nline"}, fm)
	assert.Empty(t, body)

	_, _, err = ParseDocument("# no header")
	assert.Error(t, err)
	_, _, err = ParseDocument("---\nname: A\n---\n\nbody")
	assert.Error(t, err)
}

func genPackage(t *rapid.T) skill.SkillPackage {
	text := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ,.()']{0,29}`)
	n := rapid.IntRange(0, 6).Draw(t, "resources")

	p := skill.SkillPackage{
		Slug: rapid.StringMatching(`[a-z0-9]{1,8}(-[a-z0-9]{1,8}){0,2}`).Draw(t, "slug"),
		Frontmatter: skill.Frontmatter{
			Name:        text.Draw(t, "name"),
			Description: text.Draw(t, "description"),
		},
		Body: rapid.String().Draw(t, "body"),
	}
	for i := 0; i < n; i++ {
		p.Resources = append(p.Resources, skill.SkillFile{
			Filename: rapid.StringMatching(`[a-z]{1,3}\.(py|md|sh)`).Draw(t, "filename"),
			Type:     rapid.SampledFrom(skill.FileTypes).Draw(t, "type"),
			Content:  rapid.String().Draw(t, "content"),
		})
	}
	return p
}

func TestPropertyPackUnpackRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := genPackage(rt)
		ctx := context.Background()

		first, err := Pack(ctx, p)
		if err != nil {
			rt.Fatalf("pack: %v", err)
		}
		unpacked, err := Unpack(first)
		if err != nil {
			rt.Fatalf("unpack: %v", err)
		}
		second, err := Pack(ctx, unpacked)
		if err != nil {
			rt.Fatalf("repack: %v", err)
		}
		if !bytes.Equal(first, second) {
			rt.Fatalf("repacked archive differs for %+v", p)
		}
	})
}

func TestPropertyFileCountMatchesEntries(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := genPackage(rt)
		unique := map[string]bool{}
		for _, f := range p.Resources {
			unique[f.Path()] = true
		}
		if got := len(Entries(p)); got != len(unique)+1 {
			rt.Fatalf("entries = %d, want %d", got, len(unique)+1)
		}
	})
}

func TestInstall(t *testing.T) {
	dir := t.TempDir()
	p := invoiceSorter()

	target, err := Install(context.Background(), p, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "invoice-sorter"), target)

	doc, err := os.ReadFile(filepath.Join(target, "SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, RenderDocument(p), string(doc))

	script, err := os.ReadFile(filepath.Join(target, "scripts", "sort.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('x')", string(script))

	_, err = Install(context.Background(), p, dir)
	assert.True(t, errors.Is(err, ErrSkillExists))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directories are cleaned up")
}

func TestLint(t *testing.T) {
	assert.Empty(t, Lint(invoiceSorter()))

	p := invoiceSorter()
	p.Slug = "Invoice_Sorter"
	p.Frontmatter.Description = "Use when: sorting invoices"
	p.Resources = append(p.Resources, skill.SkillFile{Filename: "sort.py", Type: skill.FileTypeScript, Content: "again"})

	warnings := Lint(p)
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "not hyphen-case")
	assert.Contains(t, warnings[1], "scripts/sort.py appears 2 times")
	assert.Contains(t, warnings[2], "not valid YAML")
}

func TestLintNonTextFrontmatter(t *testing.T) {
	p := invoiceSorter()
	p.Frontmatter.Name = "42"

	warnings := Lint(p)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "frontmatter name is not read back as text")
}

func TestExportNeverOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p := invoiceSorter()

	first, err := Export(context.Background(), p, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "invoice-sorter.zip"), first)

	p.Body = "# changed"
	second, err := Export(context.Background(), p, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "invoice-sorter-2.zip"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	unpacked, err := Unpack(data)
	require.NoError(t, err)
	assert.Equal(t, "# Invoice Sorter\n...", unpacked.Body)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}
