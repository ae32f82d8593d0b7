package history

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/jingkaihe/skillforge/pkg/logger"
)

// Backend kinds accepted by NewBackend.
const (
	KindSQLite = "sqlite"
	KindJSON   = "json"
	KindMemory = "memory"
)

// NewBackend creates the backend named by kind, storing data under baseDir.
// An empty baseDir selects the default skillforge directory.
func NewBackend(ctx context.Context, kind, baseDir string) (Backend, error) {
	if baseDir == "" {
		base, err := db.BasePath()
		if err != nil {
			return nil, err
		}
		baseDir = base
	}

	switch strings.ToLower(kind) {
	case "", KindSQLite:
		logger.G(ctx).WithField("dir", baseDir).Debug("using sqlite history")
		return NewSQLiteBackend(ctx, filepath.Join(baseDir, "history.db"))
	case KindJSON:
		logger.G(ctx).WithField("dir", baseDir).Debug("using json history")
		return NewJSONBackend(baseDir)
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, errors.Errorf("unknown history store %q, expected sqlite, json or memory", kind)
	}
}

// OpenStore creates the backend and loads the history from it.
func OpenStore(ctx context.Context, kind, baseDir string) (*Store, error) {
	backend, err := NewBackend(ctx, kind, baseDir)
	if err != nil {
		return nil, err
	}
	store, err := Open(ctx, backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}
