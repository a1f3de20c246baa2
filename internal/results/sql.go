package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/depcorr/internal/pairs"
)

// sqlStore is the database/sql implementation shared by the SQLite and
// Postgres drivers.
type sqlStore struct {
	db *sql.DB
	ph placeholders
}

const runColumns = `id, created_at, input, input_sha256, cache_key, cache_hit, threshold, genes, gene_list, pair_count`

func (s *sqlStore) RecordRun(ctx context.Context, run Run, ps []pairs.Pair) (Run, error) {
	run = prepareRun(run, ps)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, s.ph.rebind(`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, formatTime(run.CreatedAt), run.Input, run.InputSHA256, run.CacheKey,
		boolInt(run.CacheHit), run.Threshold, run.Genes, nullString(run.GeneList), run.PairCount)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	if len(ps) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.ph.rebind(`INSERT INTO run_pairs (run_id, pair_rank, gene_a, gene_b, correlation) VALUES (?, ?, ?, ?, ?)`))
		if err != nil {
			return Run{}, fmt.Errorf("prepare pair insert: %w", err)
		}
		defer stmt.Close()
		for i, p := range ps {
			if _, err := stmt.ExecContext(ctx, run.ID, i, p.GeneA, p.GeneB, p.Correlation); err != nil {
				return Run{}, fmt.Errorf("insert pair %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return run, nil
}

func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.ph.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *sqlStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, s.ph.rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

func (s *sqlStore) RunPairs(ctx context.Context, id string, limit int) ([]pairs.Pair, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	query := `SELECT gene_a, gene_b, correlation FROM run_pairs WHERE run_id = ? ORDER BY pair_rank`
	args := []any{id}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.ph.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []pairs.Pair{}
	for rows.Next() {
		var p pairs.Pair
		if err := rows.Scan(&p.GeneA, &p.GeneB, &p.Correlation); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		p.Magnitude = math.Abs(p.Correlation)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pairs: %w", err)
	}
	return out, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run      Run
		created  string
		cacheHit int
		geneList sql.NullString
	)
	err := row.Scan(&run.ID, &created, &run.Input, &run.InputSHA256, &run.CacheKey,
		&cacheHit, &run.Threshold, &run.Genes, &geneList, &run.PairCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if run.CreatedAt, err = parseTime(created); err != nil {
		return Run{}, fmt.Errorf("run %s: bad created_at %q: %w", run.ID, created, err)
	}
	run.CacheHit = cacheHit != 0
	run.GeneList = geneList.String
	return run, nil
}

// prepareRun fills the fields RecordRun owns.
func prepareRun(run Run, ps []pairs.Pair) Run {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()
	run.PairCount = len(ps)
	return run
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
