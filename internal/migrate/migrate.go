// Package migrate applies numbered SQL migrations to a database,
// grounded on the original implementation's migration_runner: PRAGMAs
// tuned for a single-writer workload, a schema_versions tracking table,
// and filename-prefix version ordering applied in a diff against what has
// already run.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// migration is one parsed, ready-to-apply SQL file.
type migration struct {
	version int
	name    string
	sql     string
}

// Run applies every pending migration in version order, recording each
// in schema_versions. A migration is recorded as applied even if it
// failed partway, matching the original runner's behavior: a migration
// that only partially succeeded should not be silently retried next boot
// and instead needs an operator's attention.
func Run(ctx context.Context, db *sql.DB) error {
	if err := setPragmas(ctx, db); err != nil {
		return fmt.Errorf("migrate: pragmas: %w", err)
	}
	if err := ensureVersionsTable(ctx, db); err != nil {
		return fmt.Errorf("migrate: schema_versions: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("migrate: load: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: applied versions: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("migrate: applying %s: %w", m.name, err)
		}
		log.Info().Int("version", m.version).Str("name", m.name).Msg("migration.applied")
	}

	log.Info().Int("count", len(migrations)).Msg("migrations.complete")
	return nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func ensureVersionsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			name        TEXT NOT NULL,
			applied_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`)
	return err
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_versions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	execErr := func() error {
		for _, stmt := range splitStatements(m.sql) {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}()

	if execErr != nil {
		_ = tx.Rollback()
		// Still record this version as applied: a migration that partially
		// ran should not be silently retried, it needs an operator to look.
		if _, recErr := db.ExecContext(ctx, `INSERT OR IGNORE INTO schema_versions (version, name) VALUES (?, ?)`, m.version, m.name); recErr != nil {
			log.Warn().Err(recErr).Int("version", m.version).Msg("migrate: failed to record failed migration")
		}
		return execErr
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_versions (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func splitStatements(script string) []string {
	return strings.Split(script, ";\n")
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationFS, "sql")
	if err != nil {
		return nil, err
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, err := parseVersion(e.Name())
		if err != nil {
			return nil, fmt.Errorf("unparseable migration filename %s: %w", e.Name(), err)
		}
		data, err := migrationFS.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, migration{version: version, name: e.Name(), sql: string(data)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// parseVersion extracts the leading numeric prefix of a migration
// filename, e.g. "0003_add_tokens.sql" -> 3.
func parseVersion(name string) (int, error) {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, fmt.Errorf("missing '_' separator")
	}
	return strconv.Atoi(prefix)
}
