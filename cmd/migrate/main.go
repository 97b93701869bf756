package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/mapcam/internal/pkg/config"
	"github.com/samirrijal/mapcam/internal/pkg/logging"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status>")
	}

	cfg, err := config.Load("mapcam-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	files, err := migrationFiles()
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		log.Fatalf("read schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, pool, files, applied)
	case "status":
		for _, f := range files {
			state := "pending"
			if applied[filepath.Base(f)] {
				state = "applied"
			}
			fmt.Printf("%-8s %s\n", state, f)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func migrationFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}

// runMigrations applies each pending file in its own transaction.
func runMigrations(ctx context.Context, pool *pgxpool.Pool, files []string, applied map[string]bool) {
	count := 0
	for _, f := range files {
		name := filepath.Base(f)
		if applied[name] {
			continue
		}

		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		slog.Info("migration applied", "file", f)
		count++
	}

	slog.Info("migrations complete", "applied", count, "total", len(files))
}
