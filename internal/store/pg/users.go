package pg

import (
	"context"
	"database/sql"
	"errors"

	"tms.dev/internal/auth"
)

var _ auth.UserStore = (*Store)(nil)

const userColumns = `id, name, email, password, created_at, updated_at`

func (s *Store) FindByEmail(ctx context.Context, email string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, email)
	return scanUser(row)
}

func (s *Store) FindByID(ctx context.Context, id string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id::text = $1`, id)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, name, email, password, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6)
		returning `+userColumns, u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	created, err := scanUser(row)
	if isPgCode(err, pgErrUniqueViolation) {
		return auth.User{}, auth.ErrConflict
	}
	return created, err
}

func scanUser(row *sql.Row) (auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}
