package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

func backendRoundTrip(t *testing.T, open func() Backend) {
	t.Helper()
	ctx := context.Background()

	b := open()
	entries, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	saved := []skill.GeneratedSkill{entry("second"), entry("first")}
	require.NoError(t, b.Save(ctx, saved))
	require.NoError(t, b.Close())

	b = open()
	defer b.Close()
	loaded, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	require.NoError(t, b.Save(ctx, saved[1:]))
	loaded, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved[1:], loaded, "save replaces the whole history")
}

func TestJSONBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	backendRoundTrip(t, func() Backend {
		b, err := NewJSONBackend(dir)
		require.NoError(t, err)
		return b
	})

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1, "no temp or lock files are left behind")
	assert.Equal(t, JSONFile, names[0].Name())
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	backendRoundTrip(t, func() Backend {
		b, err := NewSQLiteBackend(context.Background(), path)
		require.NoError(t, err)
		return b
	})
}

func TestJSONBackendMovesCorruptFileAside(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, JSONFile), []byte("{not json"), 0o644))

	b, err := NewJSONBackend(dir)
	require.NoError(t, err)
	entries, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.True(t, strings.HasPrefix(names[0].Name(), JSONFile+".corrupt-"))
}

func TestJSONBackendLockTimeout(t *testing.T) {
	dir := t.TempDir()
	b, err := NewJSONBackend(dir)
	require.NoError(t, err)
	b.lockAttempts = 2
	b.lockDelay = time.Millisecond

	lock := b.Path() + ".lock"
	require.NoError(t, os.WriteFile(lock, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644))
	err = b.Save(context.Background(), nil)
	assert.ErrorContains(t, err, "failed to acquire history lock")

	require.NoError(t, os.WriteFile(lock, nil, 0o644))
	err = b.Save(context.Background(), nil)
	assert.ErrorContains(t, err, "failed to acquire history lock", "a lock without a PID is kept")
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := NewBackend(ctx, "json", dir)
	require.NoError(t, err)
	assert.IsType(t, &JSONBackend{}, b)

	b, err = NewBackend(ctx, "", dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, b)
	require.NoError(t, b.Close())

	b, err = NewBackend(ctx, "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	_, err = NewBackend(ctx, "redis", dir)
	assert.ErrorContains(t, err, "unknown history store")
}
