package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/jingkaihe/skillforge/pkg/history"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

func sorter() skill.SkillPackage {
	return skill.SkillPackage{
		Slug: "invoice-sorter",
		Frontmatter: skill.Frontmatter{
			Name:        "Invoice Sorter",
			Description: "Use when sorting PDF invoices into vendor folders",
		},
		Body: "# Invoice Sorter\n\nRun the script.\n",
		Resources: []skill.SkillFile{
			{Filename: "sort.py", Content: "print('sort')\n", Type: skill.FileTypeScript, Language: "python"},
			{Filename: "vendors.md", Content: "- ACME\n", Type: skill.FileTypeReference},
		},
	}
}

// useHistory points the history configuration at a fresh JSON store
// seeded with entries.
func useHistory(t *testing.T, entries ...skill.GeneratedSkill) string {
	t.Helper()
	dir := t.TempDir()
	viper.Set("history.store", history.KindJSON)
	viper.Set("history.dir", dir)
	t.Cleanup(func() {
		viper.Set("history.store", history.KindSQLite)
		viper.Set("history.dir", "")
	})

	store, err := history.OpenStore(context.Background(), history.KindJSON, dir)
	require.NoError(t, err)
	for i := len(entries) - 1; i >= 0; i-- {
		require.NoError(t, store.Prepend(context.Background(), entries[i]))
	}
	require.NoError(t, store.Close())
	return dir
}

func reload(t *testing.T, dir, id string) skill.GeneratedSkill {
	t.Helper()
	store, err := history.OpenStore(context.Background(), history.KindJSON, dir)
	require.NoError(t, err)
	defer store.Close()
	g, err := store.Get(id)
	require.NoError(t, err)
	return g
}

func TestResolveID(t *testing.T) {
	entries := []skill.GeneratedSkill{
		{ID: "3f2a9c00-0000-4000-8000-000000000001"},
		{ID: "3f2b1d00-0000-4000-8000-000000000002"},
		{ID: "a1"},
	}

	tests := []struct {
		ref     string
		want    string
		wantErr string
	}{
		{ref: "a1", want: "a1"},
		{ref: "3f2a", want: "3f2a9c00-0000-4000-8000-000000000001"},
		{ref: " 3f2b1d ", want: "3f2b1d00-0000-4000-8000-000000000002"},
		{ref: "3f2", wantErr: "ambiguous"},
		{ref: "", wantErr: "cannot be empty"},
		{ref: "zz", wantErr: "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := resolveID(entries, tt.ref)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := resolveID(entries, "zz")
	assert.True(t, errors.Is(err, history.ErrNotFound))
}

func TestRenderSummaries(t *testing.T) {
	created := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	g := skill.NewGeneratedSkill(sorter(), "", created)
	summaries := []skill.Summary{g.Summarize()}

	var table bytes.Buffer
	require.NoError(t, renderSummaries(&table, summaries, formatTable))
	assert.Contains(t, table.String(), "invoice-sorter")
	assert.Contains(t, table.String(), g.ID)
	assert.Contains(t, table.String(), "Files")

	var empty bytes.Buffer
	require.NoError(t, renderSummaries(&empty, nil, formatTable))
	assert.Contains(t, empty.String(), "No generated skills found")

	var out bytes.Buffer
	require.NoError(t, renderSummaries(&out, summaries, formatJSON))
	var decoded []skill.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, 3, decoded[0].FileCount)

	out.Reset()
	require.NoError(t, renderSummaries(&out, summaries, formatYAML))
	decoded = nil
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Invoice Sorter", decoded[0].Name)

	assert.Error(t, renderSummaries(&out, summaries, "xml"))
}

func TestRenderSkill(t *testing.T) {
	g := skill.NewGeneratedSkill(sorter(), "{}", time.Now())

	var out bytes.Buffer
	require.NoError(t, renderSkill(&out, g, formatTable))
	text := out.String()
	assert.Contains(t, text, "invoice-sorter/SKILL.md")
	assert.Contains(t, text, "invoice-sorter/scripts/sort.py")
	assert.Contains(t, text, "name: Invoice Sorter")

	out.Reset()
	require.NoError(t, renderSkill(&out, g, formatYAML))
	var decoded skill.GeneratedSkill
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, g.Package, decoded.Package)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6))
}

func TestValidateGenerateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *GenerateConfig
		args    []string
		wantErr string
	}{
		{name: "file", config: NewGenerateConfig(), args: []string{"demo.webm"}},
		{name: "record", config: &GenerateConfig{Record: true, OutputDir: "."}},
		{name: "both", config: &GenerateConfig{Record: true, OutputDir: "."}, args: []string{"demo.webm"}, wantErr: "not both"},
		{name: "neither", config: NewGenerateConfig(), wantErr: "is required"},
		{name: "no output", config: &GenerateConfig{}, args: []string{"demo.webm"}, wantErr: "output directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateGenerateConfig(tt.config, tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEntryPaths(t *testing.T) {
	assert.Equal(t, []string{"SKILL.md", "scripts/sort.py", "references/vendors.md"}, entryPaths(sorter()))
}

func TestLintArchive(t *testing.T) {
	data, err := archive.Pack(context.Background(), sorter())
	require.NoError(t, err)

	p, warnings, err := lintArchive(data)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "invoice-sorter", p.Slug)

	_, _, err = lintArchive([]byte("not a zip"))
	assert.Error(t, err)
}

func TestPackageSchema(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeJSON(&out, packageSchema()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok, "schema has properties")
	for _, key := range []string{"slug", "frontmatter", "body", "resources"} {
		assert.Contains(t, props, key)
	}
	assert.Equal(t, "Skill package", doc["title"])
}

func TestRenderMigrationStatus(t *testing.T) {
	at := time.Now()
	var out bytes.Buffer
	renderMigrationStatus(&out, "/tmp/history.db", []db.MigrationStatus{
		{Version: 1, Description: "first", AppliedAt: &at},
		{Version: 2, Description: "second"},
	})
	text := out.String()
	assert.Contains(t, text, "Database: /tmp/history.db")
	assert.Contains(t, text, "[✓] 1 - first")
	assert.Contains(t, text, "[ ] 2 - second")
	assert.Contains(t, text, "Applied: 1/2 migrations")
}

func TestInboxConfig(t *testing.T) {
	config := NewWatchConfig()
	cfg := inboxConfig(config, "inbox")
	assert.Equal(t, filepath.Join("inbox", "skills"), cfg.OutputDir)
	assert.NoError(t, cfg.Validate())

	config.OutputDir = "out"
	config.Include = "**/*.pdf"
	cfg = inboxConfig(config, "inbox")
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "**/*.pdf", cfg.Include)
}

func TestRecorderFromViper(t *testing.T) {
	viper.Set("capture.command", "wf-recorder")
	viper.Set("capture.args", []string{"-f", "{output}"})
	viper.Set("capture.extension", "mp4")
	viper.Set("capture.mime_type", "video/mp4")
	t.Cleanup(func() {
		viper.Set("capture.command", "ffmpeg")
		viper.Set("capture.args", nil)
		viper.Set("capture.extension", ".webm")
		viper.Set("capture.mime_type", "video/webm")
	})

	rec := recorderFromViper()
	assert.Equal(t, "wf-recorder", rec.Command)
	assert.Equal(t, []string{"-f", "{output}"}, rec.Args)
	assert.Equal(t, ".mp4", rec.Extension)
	assert.Equal(t, "video/mp4", rec.MIMEType)
}

func TestRunEdit(t *testing.T) {
	g := skill.NewGeneratedSkill(sorter(), "", time.Now())
	dir := useHistory(t, g)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runEdit(ctx, NewEditConfig(), g.ID[:8], nil, &out))
	assert.Contains(t, out.String(), "scripts/sort.py")
	assert.Contains(t, out.String(), "python")

	out.Reset()
	require.NoError(t, runEdit(ctx, &EditConfig{File: "sort.py"}, g.ID, nil, &out))
	assert.Equal(t, "print('sort')\n", out.String())

	out.Reset()
	dry := &EditConfig{File: "scripts/sort.py", From: "-", DryRun: true}
	require.NoError(t, runEdit(ctx, dry, g.ID, strings.NewReader("print('by vendor')\n"), &out))
	assert.Contains(t, out.String(), "+print('by vendor')")
	assert.Equal(t, "print('sort')\n", reload(t, dir, g.ID).Package.Resources[0].Content)

	out.Reset()
	save := &EditConfig{File: "scripts/sort.py", From: "-"}
	require.NoError(t, runEdit(ctx, save, g.ID, strings.NewReader("print('by vendor')\n"), &out))
	saved := reload(t, dir, g.ID)
	assert.Equal(t, "print('by vendor')\n", saved.Package.Resources[0].Content)
	assert.Equal(t, g.Package.Body, saved.Package.Body)

	err := runEdit(ctx, &EditConfig{File: "missing.txt"}, g.ID, nil, &out)
	assert.Error(t, err)
}

func TestLintPathInstalledSkill(t *testing.T) {
	dir, err := archive.Install(context.Background(), sorter(), t.TempDir())
	require.NoError(t, err)

	p, warnings, err := lintPath(dir)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 3, p.FileCount())

	_, _, err = lintPath(filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}

func TestImportSkill(t *testing.T) {
	historyDir := useHistory(t)
	skillsDir := t.TempDir()
	_, err := archive.Install(context.Background(), sorter(), skillsDir)
	require.NoError(t, err)

	discovery, err := newSkillDiscovery(&SkillsConfig{Dirs: []string{skillsDir}})
	require.NoError(t, err)

	g, err := importSkill(context.Background(), discovery, "invoice-sorter")
	require.NoError(t, err)
	assert.Equal(t, sorter().Resources[0].Content, g.Package.Resources[0].Content)
	assert.Equal(t, "Invoice Sorter", reload(t, historyDir, g.ID).Package.Frontmatter.Name)

	_, err = importSkill(context.Background(), discovery, "missing")
	assert.Error(t, err)
}
