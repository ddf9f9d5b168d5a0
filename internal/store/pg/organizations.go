package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tms.dev/internal/org"
	"tms.dev/internal/rbac"
)

var _ org.Store = (*Store)(nil)

const (
	orgColumns    = `o.id, o.name, o.parent_org_id, o.created_at, o.updated_at`
	parentColumns = `p.id, p.name, p.parent_org_id, p.created_at, p.updated_at`

	// orgWithParent selects organizations with their immediate parent joined.
	orgWithParent = `select ` + orgColumns + `, ` + parentColumns + `
		from organizations o
		left join organizations p on p.id = o.parent_org_id`

	// orgTreeLockKey serializes parent changes across connections.
	orgTreeLockKey int64 = 0x746d735f6f7267
)

func (s *Store) ListOrganizations(ctx context.Context) ([]org.Organization, error) {
	return s.queryOrganizations(ctx, orgWithParent+` order by o.id`)
}

func (s *Store) GetOrganization(ctx context.Context, id int64) (org.Organization, error) {
	if s.db == nil {
		return org.Organization{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, orgWithParent+` where o.id = $1`, id)
	o, err := scanOrganizationWithParent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return org.Organization{}, org.ErrNotFound
	}
	return o, err
}

func (s *Store) ListTopLevel(ctx context.Context) ([]org.Organization, error) {
	return s.queryOrganizations(ctx, orgWithParent+` where o.parent_org_id is null order by o.id`)
}

func (s *Store) ListChildren(ctx context.Context, parentID int64) ([]org.Organization, error) {
	return s.queryOrganizations(ctx, orgWithParent+` where o.parent_org_id = $1 order by o.id`, parentID)
}

// ListByUser joins memberships to organizations and their immediate parent.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]org.Organization, error) {
	return s.queryOrganizations(ctx, `
		select `+orgColumns+`, `+parentColumns+`
		from org_user_roles r
		join organizations o on o.id = r.org_id
		left join organizations p on p.id = o.parent_org_id
		where r.user_id::text = $1
		order by o.id
	`, userID)
}

func (s *Store) ListMemberRows(ctx context.Context) ([]org.MemberRow, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select o.id, o.name, o.parent_org_id, u.email, r.role
		from organizations o
		left join org_user_roles r on r.org_id = o.id
		left join users u on u.id = r.user_id
		order by o.id, u.email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []org.MemberRow
	for rows.Next() {
		var (
			row         org.MemberRow
			parent      sql.NullInt64
			email, role sql.NullString
		)
		if err := rows.Scan(&row.OrgID, &row.OrgName, &parent, &email, &role); err != nil {
			return nil, err
		}
		row.ParentOrgID = int64Ptr(parent)
		if email.Valid {
			row.Member = &org.Member{Email: email.String, Role: rbac.Role(role.String)}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateOrganization(ctx context.Context, name string, parentID *int64) (org.Organization, error) {
	if s.db == nil {
		return org.Organization{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into organizations as o (name, parent_org_id)
		values ($1, $2)
		returning `+orgColumns, name, nullInt64(parentID))
	created, err := scanOrganization(row)
	if isPgCode(err, pgErrForeignKeyViolation) {
		return org.Organization{}, org.ErrNotFound
	}
	return created, err
}

// UpdateParent moves id under parentID inside one transaction. The
// transaction holds orgTreeLockKey while it walks parentID's ancestors and
// writes, so two crossing moves cannot both pass the check.
func (s *Store) UpdateParent(ctx context.Context, id int64, parentID *int64) (org.Organization, error) {
	if s.db == nil {
		return org.Organization{}, errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return org.Organization{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock($1)`, orgTreeLockKey); err != nil {
		return org.Organization{}, err
	}
	if parentID != nil {
		var below bool
		// union (not union all) stops on a chain that already loops
		err := tx.QueryRowContext(ctx, `
			with recursive chain(id) as (
				select $1::bigint
				union
				select o.parent_org_id
				from organizations o
				join chain c on o.id = c.id
				where o.parent_org_id is not null
			)
			select exists(select 1 from chain where id = $2)
		`, *parentID, id).Scan(&below)
		if err != nil {
			return org.Organization{}, err
		}
		if below {
			return org.Organization{}, fmt.Errorf("%w: %d is %d or lies below it", org.ErrCycle, *parentID, id)
		}
	}

	row := tx.QueryRowContext(ctx, `
		update organizations as o
		set parent_org_id = $2, updated_at = now()
		where o.id = $1
		returning `+orgColumns, id, nullInt64(parentID))
	updated, err := scanOrganization(row)
	switch {
	case errors.Is(err, sql.ErrNoRows), isPgCode(err, pgErrForeignKeyViolation):
		return org.Organization{}, org.ErrNotFound
	case err != nil:
		return org.Organization{}, err
	}
	if err := tx.Commit(); err != nil {
		return org.Organization{}, err
	}
	return updated, nil
}

// UpsertMembership keeps one role per (org, user).
func (s *Store) UpsertMembership(ctx context.Context, m org.Membership) (org.Membership, error) {
	if s.db == nil {
		return org.Membership{}, errNoDB
	}
	var (
		out  org.Membership
		role string
	)
	err := s.db.QueryRowContext(ctx, `
		insert into org_user_roles (org_id, user_id, role)
		values ($1, $2, $3)
		on conflict (org_id, user_id) do update set role = excluded.role
		returning org_id, user_id, role
	`, m.OrgID, m.UserID, string(m.Role)).Scan(&out.OrgID, &out.UserID, &role)
	if isPgCode(err, pgErrForeignKeyViolation) {
		return org.Membership{}, org.ErrNotFound
	}
	if err != nil {
		return org.Membership{}, err
	}
	out.Role = rbac.Role(role)
	return out, nil
}

func (s *Store) GetMembership(ctx context.Context, orgID int64, userID string) (org.Membership, error) {
	if s.db == nil {
		return org.Membership{}, errNoDB
	}
	var (
		out  org.Membership
		role string
	)
	err := s.db.QueryRowContext(ctx, `
		select org_id, user_id, role
		from org_user_roles
		where org_id = $1 and user_id::text = $2
	`, orgID, userID).Scan(&out.OrgID, &out.UserID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return org.Membership{}, org.ErrNotFound
	}
	if err != nil {
		return org.Membership{}, err
	}
	out.Role = rbac.Role(role)
	return out, nil
}

func (s *Store) queryOrganizations(ctx context.Context, query string, args ...any) ([]org.Organization, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []org.Organization{}
	for rows.Next() {
		o, err := scanOrganizationWithParent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrganization(sc scanner) (org.Organization, error) {
	var (
		o      org.Organization
		parent sql.NullInt64
	)
	if err := sc.Scan(&o.ID, &o.Name, &parent, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return org.Organization{}, err
	}
	o.ParentOrgID = int64Ptr(parent)
	return o, nil
}

// scanOrganizationWithParent reads orgColumns followed by parentColumns.
func scanOrganizationWithParent(sc scanner) (org.Organization, error) {
	var (
		o                  org.Organization
		parentOfOrg        sql.NullInt64
		pID, pParent       sql.NullInt64
		pName              sql.NullString
		pCreated, pUpdated sql.NullTime
	)
	if err := sc.Scan(&o.ID, &o.Name, &parentOfOrg, &o.CreatedAt, &o.UpdatedAt,
		&pID, &pName, &pParent, &pCreated, &pUpdated); err != nil {
		return org.Organization{}, err
	}
	o.ParentOrgID = int64Ptr(parentOfOrg)
	if pID.Valid {
		o.Parent = &org.Organization{
			ID:          pID.Int64,
			Name:        pName.String,
			ParentOrgID: int64Ptr(pParent),
			CreatedAt:   pCreated.Time,
			UpdatedAt:   pUpdated.Time,
		}
	}
	return o, nil
}
