// Package migrations lists the schema migrations of the history database.
// Versions are YYYYMMDDHHmmss timestamps; add new migrations to All.
package migrations

import (
	"github.com/jingkaihe/skillforge/pkg/db"
)

// All returns every migration in version order.
func All() []db.Migration {
	return []db.Migration{
		Migration20261014090000CreateGeneratedSkills(),
		Migration20261014090100AddSlugIndex(),
	}
}
