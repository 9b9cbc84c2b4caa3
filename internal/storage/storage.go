// Package storage opens the configured SQL backend and provides the small
// transaction helpers shared by the repositories.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ahmedtaha100/RotateStay/backend/internal/config"
	"github.com/ahmedtaha100/RotateStay/backend/internal/storage/postgres"
	"github.com/ahmedtaha100/RotateStay/backend/internal/storage/sqlite"
)

// Conn is what both backends expose to main.
type Conn interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	DB() *sql.DB
}

type sqliteConn struct{ *sqlite.Sqlite }

func (c sqliteConn) DB() *sql.DB { return c.Db }

type postgresConn struct{ *postgres.Postgres }

func (c postgresConn) DB() *sql.DB { return c.Db }

func Open(cfg config.Config) (Conn, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLITEDsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqliteConn{s}, nil
	case config.DriverPostgres:
		p, err := postgres.New(cfg.PostgresDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return postgresConn{p}, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

// DBTX is the subset of database/sql used by repositories.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error or panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
