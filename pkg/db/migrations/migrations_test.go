package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/db"
)

func TestAllIsOrdered(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}
	for _, m := range all {
		assert.NotNil(t, m.Down, "migration %d must be reversible", m.Version)
	}
}

func TestAllApplyAndRollBack(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.OpenMigrated(ctx, filepath.Join(t.TempDir(), "history.db"), All())
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = sqlDB.ExecContext(ctx, `INSERT INTO generated_skills (id, position, created_at, slug, name, package) VALUES ('a', 0, 0, 's', 'n', '{}')`)
	require.NoError(t, err)

	runner := db.NewMigrationRunner(sqlDB)
	for range All() {
		_, err := runner.Rollback(ctx, All())
		require.NoError(t, err)
	}

	var count int
	require.NoError(t, sqlDB.GetContext(ctx, &count, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'generated_skills'"))
	assert.Zero(t, count)
}
