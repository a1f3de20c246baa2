package results

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestRebind(t *testing.T) {
	q := `INSERT INTO t (a, b) VALUES (?, ?)`
	if got := questionMarks.rebind(q); got != q {
		t.Errorf("rebind() = %q, want unchanged", got)
	}
	want := `INSERT INTO t (a, b) VALUES ($1, $2)`
	if got := dollarNumbers.rebind(q); got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(schemaV1)
	if len(stmts) != 4 {
		t.Fatalf("splitStatements() = %d statements, want 4", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE") {
			t.Errorf("statement %q does not start with CREATE", s)
		}
	}
}

func TestNewPostgres_OpenError(t *testing.T) {
	boom := errors.New("boom")
	var gotDriver string
	restore := overrideSQLOpen(func(driver, _ string) (*sql.DB, error) {
		gotDriver = driver
		return nil, boom
	})
	defer restore()

	if _, err := NewPostgres(context.Background(), "postgres://localhost/depcorr"); !errors.Is(err, boom) {
		t.Errorf("NewPostgres() error = %v, want %v", err, boom)
	}
	if gotDriver != pgxDriver {
		t.Errorf("driver = %q, want %q", gotDriver, pgxDriver)
	}
	if _, err := NewPostgres(context.Background(), ""); err == nil {
		t.Error("NewPostgres(\"\") error = nil, want error")
	}
}

func TestPostgres_Integration(t *testing.T) {
	dsn := os.Getenv("DEPCORR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DEPCORR_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	defer s.Close()

	run, err := s.RecordRun(ctx, Run{Input: "x", CacheKey: "k"}, samplePairs)
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	ps, err := s.RunPairs(ctx, run.ID, 0)
	if err != nil {
		t.Fatalf("RunPairs() error = %v", err)
	}
	if len(ps) != len(samplePairs) {
		t.Errorf("RunPairs() = %d pairs, want %d", len(ps), len(samplePairs))
	}
}
