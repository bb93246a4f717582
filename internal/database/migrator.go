package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"lab-backend/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrator applies the .sql files of a filesystem in name order, once each
type Migrator struct {
	pool  *pgxpool.Pool
	files fs.FS
}

func NewMigrator(pool *pgxpool.Pool, files fs.FS) *Migrator {
	return &Migrator{pool: pool, files: files}
}

// PendingMigrations returns the migration files not in applied, sorted. Files whose name
// contains "reset" are never run automatically.
func PendingMigrations(files fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || strings.Contains(name, "reset") {
			continue
		}
		if !applied[name] {
			pending = append(pending, name)
		}
	}
	sort.Strings(pending)
	return pending, nil
}

// RunMigrations executes all pending migrations, each in its own transaction
func (m *Migrator) RunMigrations(ctx context.Context) error {
	log := logger.WithComponent("migrator")

	if _, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	pending, err := PendingMigrations(m.files, applied)
	if err != nil {
		return err
	}

	for _, name := range pending {
		content, err := fs.ReadFile(m.files, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		log.Info().Str("file", name).Msg("running migration")
		if err := m.apply(ctx, name, string(content)); err != nil {
			return err
		}
	}

	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("migrations applied")
	} else {
		log.Info().Msg("database is up to date")
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, name, sql string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to run migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (filename) VALUES ($1) ON CONFLICT (filename) DO NOTHING`, name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	return tx.Commit(ctx)
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)
	rows, err := m.pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		applied[filename] = true
	}
	return applied, rows.Err()
}
