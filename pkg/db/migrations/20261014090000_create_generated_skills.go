package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/db"
)

// Migration20261014090000CreateGeneratedSkills creates the history table.
// position orders entries newest first; package holds the JSON encoded
// skill package.
func Migration20261014090000CreateGeneratedSkills() db.Migration {
	return db.Migration{
		Version:     20261014090000,
		Description: "Create generated_skills table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS generated_skills (
					id TEXT PRIMARY KEY,
					position INTEGER NOT NULL,
					created_at INTEGER NOT NULL,
					slug TEXT NOT NULL,
					name TEXT NOT NULL,
					package TEXT NOT NULL,
					raw_response TEXT NOT NULL DEFAULT ''
				)
			`)
			return errors.Wrap(err, "failed to create generated_skills table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS generated_skills")
			return errors.Wrap(err, "failed to drop generated_skills table")
		},
	}
}
