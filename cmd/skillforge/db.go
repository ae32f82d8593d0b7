package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillforge/pkg/db"
	"github.com/jingkaihe/skillforge/pkg/db/migrations"
	"github.com/jingkaihe/skillforge/pkg/presenter"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "History database management commands",
	Long:  `Commands for managing the sqlite history database (migrations, status, etc.)`,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	Long:  `Shows the current database migration status, including applied and pending migrations.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		return withDatabase(ctx, func(path string, conn *sqlx.DB) error {
			statuses, err := db.NewMigrationRunner(conn).Status(ctx, migrations.All())
			if err != nil {
				return errors.Wrap(err, "failed to get migration status")
			}
			renderMigrationStatus(cmd.OutOrStdout(), path, statuses)
			return nil
		})
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  `Applies every pending migration. The history store does this on open as well.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		return withDatabase(ctx, func(_ string, conn *sqlx.DB) error {
			if err := db.NewMigrationRunner(conn).Run(ctx, migrations.All()); err != nil {
				return err
			}
			presenter.Success("Database is up to date")
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback the last database migration",
	Long:  `Rolls back the most recently applied database migration. Useful for testing or downgrading skillforge.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		return withDatabase(ctx, func(_ string, conn *sqlx.DB) error {
			version, err := db.NewMigrationRunner(conn).Rollback(ctx, migrations.All())
			if err != nil {
				return err
			}
			if version == 0 {
				presenter.Warning("No migrations to rollback")
				return nil
			}
			presenter.Success(fmt.Sprintf("Successfully rolled back migration %d: %s", version, describeMigration(version)))
			return nil
		})
	},
}

func init() {
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbRollbackCmd)
}

// databasePath returns the sqlite history path, honouring history.dir.
func databasePath() (string, error) {
	if dir := viper.GetString("history.dir"); dir != "" {
		return filepath.Join(dir, "history.db"), nil
	}
	return db.DefaultDBPath()
}

func withDatabase(ctx context.Context, f func(path string, conn *sqlx.DB) error) error {
	path, err := databasePath()
	if err != nil {
		return err
	}
	conn, err := db.Open(ctx, path)
	if err != nil {
		return err
	}
	defer conn.Close()
	return f(path, conn)
}

func describeMigration(version int64) string {
	for _, m := range migrations.All() {
		if m.Version == version {
			return m.Description
		}
	}
	return "unknown"
}

func renderMigrationStatus(w io.Writer, path string, statuses []db.MigrationStatus) {
	fmt.Fprintln(w, "Database Migration Status")
	fmt.Fprintln(w, "=========================")
	fmt.Fprintf(w, "Database: %s\n\n", path)

	applied := 0
	for _, s := range statuses {
		mark := "[ ]"
		if s.Applied() {
			mark = "[✓]"
			applied++
		}
		fmt.Fprintf(w, "%s %d - %s\n", mark, s.Version, s.Description)
	}

	fmt.Fprintf(w, "\nApplied: %d/%d migrations\n", applied, len(statuses))
}
