package cmd

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-accounts/config"
	"github.com/vibast-solutions/ms-go-accounts/migrations"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the accounts database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrations(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			return goose.UpContext(ctx, db, ".")
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrations(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			return goose.DownContext(ctx, db, ".")
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of every migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrations(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			return goose.StatusContext(ctx, db, ".")
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withMigrations(ctx context.Context, run func(ctx context.Context, db *sql.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadMySQL()
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = db.PingContext(ctx); err != nil {
		return err
	}

	goose.SetBaseFS(migrations.Migrations)
	if err = goose.SetDialect("mysql"); err != nil {
		return err
	}

	return run(ctx, db)
}
