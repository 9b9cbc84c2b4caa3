package repository

import (
	"context"
	"strings"

	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID,
		strings.ToLower(u.Email),
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.IsActive,
		u.CreatedAt,
	)
	return err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	const query = `
		SELECT id, email, password_hash, first_name, last_name, is_active, created_at
		FROM users WHERE id = $1
	`
	return s.scanUser(ctx, query, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT id, email, password_hash, first_name, last_name, is_active, created_at
		FROM users WHERE email = $1
	`
	return s.scanUser(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) scanUser(ctx context.Context, query string, arg string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.IsActive,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
