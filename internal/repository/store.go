package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/storage"
)

var ErrNotFound = errors.New("record not found")

// Store is the SQL-backed record store used by every service. The queries use
// numbered placeholders, each appearing once and in order, so they run
// unchanged on sqlite and postgres.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, tx storage.DBTX) error) error {
	return storage.WithTx(ctx, s.db, fn)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
