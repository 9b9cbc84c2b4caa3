package sqlite

import (
	"context"
	"io/fs"

	"github.com/ahmedtaha100/RotateStay/backend/internal/storage/migrations"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending sqlite migration.
func (s *Sqlite) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations.FS, migrations.SQLiteDir)
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, s.Db, fsys)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}
