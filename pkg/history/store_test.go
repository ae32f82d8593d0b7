package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

func entry(slug string) skill.GeneratedSkill {
	return skill.NewGeneratedSkill(skill.SkillPackage{
		Slug:        slug,
		Frontmatter: skill.Frontmatter{Name: slug, Description: "Use when testing " + slug},
		Body:        "# " + slug,
		Resources:   []skill.SkillFile{{Filename: "run.sh", Type: skill.FileTypeScript, Content: "echo " + slug}},
	}, `{"slug":"`+slug+`"}`, time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC))
}

func slugs(entries []skill.GeneratedSkill) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Package.Slug)
	}
	return out
}

type failingBackend struct {
	MemoryBackend
	fail bool
}

func (b *failingBackend) Save(ctx context.Context, entries []skill.GeneratedSkill) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Save(ctx, entries)
}

func TestStoreMutationsWriteThrough(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s, err := Open(ctx, backend)
	require.NoError(t, err)

	a, b, c := entry("a"), entry("b"), entry("c")
	for _, e := range []skill.GeneratedSkill{a, b, c} {
		require.NoError(t, s.Prepend(ctx, e))
	}
	assert.Equal(t, []string{"c", "b", "a"}, slugs(s.List()))

	require.NoError(t, s.Remove(ctx, b.ID))
	assert.Equal(t, []string{"c", "a"}, slugs(s.List()))

	edited := a.Package.Clone()
	edited.Body = "# edited"
	updated, err := s.Replace(ctx, a.ID, edited)
	require.NoError(t, err)
	assert.Equal(t, a.ID, updated.ID)
	assert.Equal(t, a.CreatedAt, updated.CreatedAt)
	assert.Equal(t, a.RawResponse, updated.RawResponse)
	assert.Equal(t, "# edited", updated.Package.Body)
	assert.Equal(t, []string{"c", "a"}, slugs(s.List()), "replace keeps position")

	assert.Equal(t, 5, backend.Saves())
	stored, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.List(), stored)
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(entry("a"))
	s, err := Open(ctx, backend)
	require.NoError(t, err)

	_, err = s.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Remove(ctx, "missing"), ErrNotFound))
	_, err = s.Replace(ctx, "missing", skill.SkillPackage{})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, backend.Saves(), "failed lookups do not rewrite the store")
}

func TestStoreListIsACopy(t *testing.T) {
	s, err := Open(context.Background(), NewMemoryBackend(entry("a")))
	require.NoError(t, err)

	list := s.List()
	list[0].Package.Resources[0].Content = "tampered"
	got, err := s.Get(list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "echo a", got.Package.Resources[0].Content)
}

func TestStoreKeepsChangeWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{fail: true}
	s, err := Open(ctx, backend)
	require.NoError(t, err)

	a := entry("a")
	err = s.Prepend(ctx, a)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, s.Len())

	backend.fail = false
	require.NoError(t, s.Prepend(ctx, entry("b")))
	stored, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, slugs(stored), "next save heals the store")
}

func TestPropertyDeleteKeepsRelativeOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		s, err := Open(ctx, NewMemoryBackend())
		if err != nil {
			rt.Fatalf("open: %v", err)
		}

		n := rapid.IntRange(1, 20).Draw(rt, "n")
		var ids []string
		for i := 0; i < n; i++ {
			e := entry(fmt.Sprintf("s%d", i))
			ids = append([]string{e.ID}, ids...)
			if err := s.Prepend(ctx, e); err != nil {
				rt.Fatalf("prepend: %v", err)
			}
		}

		victim := rapid.IntRange(0, n-1).Draw(rt, "victim")
		if err := s.Remove(ctx, ids[victim]); err != nil {
			rt.Fatalf("remove: %v", err)
		}
		want := append(append([]string{}, ids[:victim]...), ids[victim+1:]...)

		got := s.List()
		if len(got) != n-1 {
			rt.Fatalf("len = %d, want %d", len(got), n-1)
		}
		for i, e := range got {
			if e.ID != want[i] {
				rt.Fatalf("entry %d = %s, want %s", i, e.ID, want[i])
			}
		}
	})
}
