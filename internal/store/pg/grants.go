package pg

import (
	"context"
	"database/sql"
	"errors"

	"tms.dev/internal/rbac"
)

var _ rbac.Store = (*Store)(nil)

const grantColumns = `id, role, feature, action`

func (s *Store) FindByRoleAndFeature(ctx context.Context, role rbac.Role, feature string) ([]rbac.Grant, error) {
	return s.queryGrants(ctx, `select `+grantColumns+` from permissions where role = $1 and feature = $2 order by id`,
		string(role), feature)
}

func (s *Store) ListGrants(ctx context.Context) ([]rbac.Grant, error) {
	return s.queryGrants(ctx, `select `+grantColumns+` from permissions order by id`)
}

func (s *Store) FindByRole(ctx context.Context, role rbac.Role) ([]rbac.Grant, error) {
	return s.queryGrants(ctx, `select `+grantColumns+` from permissions where role = $1 order by id`, string(role))
}

func (s *Store) FindByFeature(ctx context.Context, feature string) ([]rbac.Grant, error) {
	return s.queryGrants(ctx, `select `+grantColumns+` from permissions where feature = $1 order by id`, feature)
}

func (s *Store) GetGrant(ctx context.Context, id int64) (rbac.Grant, error) {
	if s.db == nil {
		return rbac.Grant{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+grantColumns+` from permissions where id = $1`, id)
	return scanGrant(row)
}

func (s *Store) FindByRoleFeatureAndAction(ctx context.Context, role rbac.Role, feature string, action rbac.Action) (rbac.Grant, error) {
	if s.db == nil {
		return rbac.Grant{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+grantColumns+`
		from permissions
		where role = $1 and feature = $2 and action = $3
	`, string(role), feature, string(action))
	return scanGrant(row)
}

// UpsertGrant is a single-statement idempotent insert.
func (s *Store) UpsertGrant(ctx context.Context, role rbac.Role, feature string, action rbac.Action) (rbac.Grant, error) {
	if s.db == nil {
		return rbac.Grant{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (role, feature, action)
		values ($1, $2, $3)
		on conflict (role, feature, action) do update set feature = excluded.feature
		returning `+grantColumns, string(role), feature, string(action))
	return scanGrant(row)
}

func (s *Store) DeleteGrant(ctx context.Context, role rbac.Role, feature string, action rbac.Action) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from permissions where role = $1 and feature = $2 and action = $3`,
		string(role), feature, string(action))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) queryGrants(ctx context.Context, query string, args ...any) ([]rbac.Grant, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rbac.Grant
	for rows.Next() {
		var (
			g            rbac.Grant
			role, action string
		)
		if err := rows.Scan(&g.ID, &role, &g.Feature, &action); err != nil {
			return nil, err
		}
		g.Role, g.Action = rbac.Role(role), rbac.Action(action)
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanGrant(row *sql.Row) (rbac.Grant, error) {
	var (
		g            rbac.Grant
		role, action string
	)
	err := row.Scan(&g.ID, &role, &g.Feature, &action)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Grant{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Grant{}, err
	}
	g.Role, g.Action = rbac.Role(role), rbac.Action(action)
	return g, nil
}
