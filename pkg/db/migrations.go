package db

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Migration is a schema change identified by a YYYYMMDDHHmmss timestamp.
type Migration struct {
	Version     int64
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error
}

// MigrationStatus reports whether a known migration has been applied.
type MigrationStatus struct {
	Version     int64
	Description string
	AppliedAt   *time.Time
}

// Applied reports whether the migration has run.
func (s MigrationStatus) Applied() bool { return s.AppliedAt != nil }

// MigrationRunner applies and rolls back migrations.
type MigrationRunner struct {
	db *sqlx.DB
}

// NewMigrationRunner creates a runner for db.
func NewMigrationRunner(db *sqlx.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

// Run applies every pending migration in version order.
func (r *MigrationRunner) Run(ctx context.Context, migrations []Migration) error {
	applied, err := r.applied(ctx)
	if err != nil {
		return err
	}

	for _, m := range sorted(migrations) {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		err := r.inTx(ctx, m.Up, "INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().Unix(), m.Description)
		if err != nil {
			return errors.Wrapf(err, "failed to apply migration %d (%s)", m.Version, m.Description)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration. It returns the
// reverted version, or 0 if nothing was applied.
func (r *MigrationRunner) Rollback(ctx context.Context, migrations []Migration) (int64, error) {
	if err := r.ensureTable(ctx); err != nil {
		return 0, err
	}

	var version int64
	if err := r.db.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return 0, errors.Wrap(err, "failed to get latest migration version")
	}
	if version == 0 {
		return 0, nil
	}

	for _, m := range migrations {
		if m.Version != version {
			continue
		}
		if m.Down == nil {
			return 0, errors.Errorf("migration %d cannot be rolled back", version)
		}
		if err := r.inTx(ctx, m.Down, "DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
			return 0, errors.Wrapf(err, "failed to roll back migration %d", version)
		}
		return version, nil
	}
	return 0, errors.Errorf("migration %d is not known to this binary", version)
}

// Status lists every known migration with its applied time.
func (r *MigrationRunner) Status(ctx context.Context, migrations []Migration) ([]MigrationStatus, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	var statuses []MigrationStatus
	for _, m := range sorted(migrations) {
		s := MigrationStatus{Version: m.Version, Description: m.Description}
		if at, ok := applied[m.Version]; ok {
			at := at
			s.AppliedAt = &at
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func (r *MigrationRunner) ensureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL,
			description TEXT
		)
	`)
	return errors.Wrap(err, "failed to create schema_migrations table")
}

func (r *MigrationRunner) applied(ctx context.Context) (map[int64]time.Time, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}

	var rows []struct {
		Version   int64 `db:"version"`
		AppliedAt int64 `db:"applied_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, "SELECT version, applied_at FROM schema_migrations"); err != nil {
		return nil, errors.Wrap(err, "failed to get applied migrations")
	}

	applied := make(map[int64]time.Time, len(rows))
	for _, row := range rows {
		applied[row.Version] = time.Unix(row.AppliedAt, 0).UTC()
	}
	return applied, nil
}

// inTx runs change and the bookkeeping statement in one transaction.
func (r *MigrationRunner) inTx(ctx context.Context, change func(*sql.Tx) error, record string, args ...any) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := change(tx.Tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return errors.Wrap(err, "failed to record migration")
	}
	return tx.Commit()
}

func sorted(migrations []Migration) []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}
