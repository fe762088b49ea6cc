package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/cyberhoot/db/migrations"
	"github.com/gokatarajesh/cyberhoot/internal/config"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load("configs/.env")
	}

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

func newRootCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:           "migrator",
		Short:         "Apply the embedded goose migrations to Postgres",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to the PG_* environment)")

	run := func(name string, fn func(ctx context.Context, db *sql.DB) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("Run goose %s", name),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := open(cmd.Context(), dsn)
				if err != nil {
					return err
				}
				defer db.Close()
				return fn(cmd.Context(), db)
			},
		}
	}

	cmd.AddCommand(
		run("up", func(ctx context.Context, db *sql.DB) error {
			if err := goose.UpContext(ctx, db, "."); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			log.Info().Msg("migrations applied successfully")
			return nil
		}),
		run("down", func(ctx context.Context, db *sql.DB) error {
			if err := goose.DownContext(ctx, db, "."); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			log.Info().Msg("migrations rolled back successfully")
			return nil
		}),
		run("status", func(ctx context.Context, db *sql.DB) error {
			return goose.StatusContext(ctx, db, ".")
		}),
	)
	return cmd
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		var pg config.Postgres
		if err := env.Parse(&pg); err != nil {
			return nil, fmt.Errorf("parse postgres config: %w", err)
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			pg.Host, pg.Port, pg.User, pg.Password, pg.Database, pg.SSLMode)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetTableName("goose_db_version")
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Msg("connected to database")
	return db, nil
}
