package results

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const pgxDriver = "pgx"

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Postgres stores runs in a shared database so several analysts can see
// each other's results.
type Postgres struct {
	sqlStore
}

// NewPostgres connects with dsn, pings, and applies the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	openMu.Lock()
	db, err := sqlOpen(pgxDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := initSchema(ctx, db, dollarNumbers); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Postgres{sqlStore: sqlStore{db: db, ph: dollarNumbers}}, nil
}

// overrideSQLOpen swaps the open function for tests and returns a restore
// function.
func overrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}
