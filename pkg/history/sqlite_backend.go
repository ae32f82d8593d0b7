package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/jingkaihe/skillforge/pkg/db/migrations"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// SQLiteBackend stores the history in the generated_skills table.
type SQLiteBackend struct {
	db *sqlx.DB
}

var _ Backend = (*SQLiteBackend)(nil)

type skillRecord struct {
	ID          string `db:"id"`
	Position    int    `db:"position"`
	CreatedAt   int64  `db:"created_at"`
	Slug        string `db:"slug"`
	Name        string `db:"name"`
	Package     string `db:"package"`
	RawResponse string `db:"raw_response"`
}

// NewSQLiteBackend opens the database at dbPath and migrates it.
func NewSQLiteBackend(ctx context.Context, dbPath string) (*SQLiteBackend, error) {
	sqlDB, err := db.OpenMigrated(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, err
	}
	return &SQLiteBackend{db: sqlDB}, nil
}

// Load reads every row in position order.
func (b *SQLiteBackend) Load(ctx context.Context) ([]skill.GeneratedSkill, error) {
	var records []skillRecord
	if err := b.db.SelectContext(ctx, &records, "SELECT * FROM generated_skills ORDER BY position"); err != nil {
		return nil, errors.Wrap(err, "failed to query generated skills")
	}

	entries := make([]skill.GeneratedSkill, 0, len(records))
	for _, r := range records {
		var pkg skill.SkillPackage
		if err := json.Unmarshal([]byte(r.Package), &pkg); err != nil {
			return nil, errors.Wrapf(err, "failed to decode package of %s", r.ID)
		}
		entries = append(entries, skill.GeneratedSkill{
			ID:          r.ID,
			CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
			Package:     pkg,
			RawResponse: r.RawResponse,
		})
	}
	return entries, nil
}

// Save rewrites the table inside one transaction.
func (b *SQLiteBackend) Save(ctx context.Context, entries []skill.GeneratedSkill) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM generated_skills"); err != nil {
		return errors.Wrap(err, "failed to clear generated skills")
	}

	for i, e := range entries {
		pkg, err := json.Marshal(e.Package)
		if err != nil {
			return errors.Wrapf(err, "failed to encode package of %s", e.ID)
		}
		record := skillRecord{
			ID:          e.ID,
			Position:    i,
			CreatedAt:   e.CreatedAt.UnixNano(),
			Slug:        e.Package.Slug,
			Name:        e.Package.Frontmatter.Name,
			Package:     string(pkg),
			RawResponse: e.RawResponse,
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO generated_skills (id, position, created_at, slug, name, package, raw_response)
			VALUES (:id, :position, :created_at, :slug, :name, :package, :raw_response)
		`, record); err != nil {
			return errors.Wrapf(err, "failed to insert %s", e.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit history")
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
