package pg

import (
	"context"
	"database/sql"
	"errors"

	"tms.dev/internal/task"
)

var _ task.Store = (*Store)(nil)

const taskColumns = `id, title, description, is_completed, org_id, owner_id, category, created_at, updated_at`

func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if s.db == nil {
		return task.Task{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into tasks (id, title, description, is_completed, org_id, owner_id, category, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning `+taskColumns,
		t.ID, t.Title, nullIfEmpty(t.Description), t.IsCompleted, t.OrgID, t.OwnerID, nullIfEmpty(t.Category),
		t.CreatedAt, t.UpdatedAt)
	created, err := scanTask(row)
	if isPgCode(err, pgErrForeignKeyViolation) {
		return task.Task{}, task.ErrInvalidInput
	}
	return created, err
}

func (s *Store) GetTask(ctx context.Context, orgID int64, id string) (task.Task, error) {
	if s.db == nil {
		return task.Task{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+taskColumns+` from tasks where id = $1 and org_id = $2`, id, orgID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, task.ErrNotFound
	}
	return t, err
}

func (s *Store) ListTasksByOrg(ctx context.Context, orgID int64) ([]task.Task, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select `+taskColumns+` from tasks where org_id = $1 order by created_at desc`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if s.db == nil {
		return task.Task{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update tasks
		set title = $3, description = $4, is_completed = $5, category = $6, updated_at = $7
		where id = $1 and org_id = $2
		returning `+taskColumns,
		t.ID, t.OrgID, t.Title, nullIfEmpty(t.Description), t.IsCompleted, nullIfEmpty(t.Category), t.UpdatedAt)
	updated, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, task.ErrNotFound
	}
	return updated, err
}

func (s *Store) DeleteTask(ctx context.Context, orgID int64, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from tasks where id = $1 and org_id = $2`, id, orgID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}

func scanTask(sc scanner) (task.Task, error) {
	var (
		t                     task.Task
		description, category sql.NullString
	)
	if err := sc.Scan(&t.ID, &t.Title, &description, &t.IsCompleted, &t.OrgID, &t.OwnerID, &category,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return task.Task{}, err
	}
	t.Description = description.String
	t.Category = category.String
	return t, nil
}
