package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

type Sqlite struct {
	Db *sql.DB
}

// pragmas run on the single pooled connection. journal_mode is skipped for
// in-memory databases, which cannot use WAL.
var pragmas = []struct {
	stmt     string
	required bool
	onDisk   bool
}{
	{stmt: "PRAGMA foreign_keys = ON", required: true},
	{stmt: "PRAGMA busy_timeout = 5000"},
	{stmt: "PRAGMA journal_mode = WAL", onDisk: true},
	{stmt: "PRAGMA synchronous = NORMAL", onDisk: true},
}

func New(dsn string) (*Sqlite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One connection: sqlite serialises writers anyway, and an in-memory
	// database only exists inside the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	memory := strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
	for _, p := range pragmas {
		if p.onDisk && memory {
			continue
		}
		if _, err := db.Exec(p.stmt); err != nil && p.required {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p.stmt, err)
		}
	}

	return &Sqlite{
		Db: db,
	}, nil
}

func (s *Sqlite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}
