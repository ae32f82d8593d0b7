package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/db"
)

// Migration20261014090100AddSlugIndex indexes history lookups by position and slug.
func Migration20261014090100AddSlugIndex() db.Migration {
	return db.Migration{
		Version:     20261014090100,
		Description: "Add position and slug indexes to generated_skills",
		Up: func(tx *sql.Tx) error {
			for _, stmt := range []string{
				"CREATE INDEX IF NOT EXISTS idx_generated_skills_position ON generated_skills(position)",
				"CREATE INDEX IF NOT EXISTS idx_generated_skills_slug ON generated_skills(slug)",
			} {
				if _, err := tx.Exec(stmt); err != nil {
					return errors.Wrap(err, "failed to create index")
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, stmt := range []string{
				"DROP INDEX IF EXISTS idx_generated_skills_slug",
				"DROP INDEX IF EXISTS idx_generated_skills_position",
			} {
				if _, err := tx.Exec(stmt); err != nil {
					return errors.Wrap(err, "failed to drop index")
				}
			}
			return nil
		},
	}
}
