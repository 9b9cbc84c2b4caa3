package postgres

import (
	"context"
	"io/fs"

	"github.com/ahmedtaha100/RotateStay/backend/internal/storage/migrations"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending postgres migration.
func (s *Postgres) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations.FS, migrations.PostgresDir)
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectPostgres, s.Db, fsys)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}
