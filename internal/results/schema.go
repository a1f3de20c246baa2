package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is valid for both SQLite and Postgres.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    input TEXT NOT NULL,
    input_sha256 TEXT NOT NULL,
    cache_key TEXT NOT NULL,
    cache_hit INTEGER NOT NULL DEFAULT 0,
    threshold DOUBLE PRECISION NOT NULL,
    genes INTEGER NOT NULL,
    gene_list TEXT,
    pair_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

CREATE TABLE IF NOT EXISTS run_pairs (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    pair_rank INTEGER NOT NULL,
    gene_a TEXT NOT NULL,
    gene_b TEXT NOT NULL,
    correlation DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (run_id, pair_rank)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// placeholders selects the bind parameter syntax of a driver.
type placeholders int

const (
	questionMarks placeholders = iota // ?
	dollarNumbers                     // $1, $2, ...
)

// rebind rewrites ? placeholders for the target syntax. Queries in this
// package never contain a literal question mark.
func (p placeholders) rebind(query string) string {
	if p == questionMarks {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitStatements splits a schema on semicolons, dropping blanks.
func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) != "" {
			out = append(out, strings.TrimSpace(stmt))
		}
	}
	return out
}

// initSchema creates the tables on a fresh database and checks the version
// of an existing one.
func initSchema(ctx context.Context, db *sql.DB, ph placeholders) error {
	version, err := schemaVersion(ctx, db)
	if err == nil {
		if version > SchemaVersion {
			return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
		}
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range splitStatements(schemaV1) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		ph.rebind(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?) ON CONFLICT (version) DO NOTHING`),
		SchemaVersion, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	committed = true
	return nil
}

// schemaVersion errors when the schema_version table does not exist yet.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, errors.New("schema_version is empty")
	}
	return int(version.Int64), nil
}
