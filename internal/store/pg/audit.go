package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tms.dev/internal/audit"
)

var _ audit.Store = (*Store)(nil)

func (s *Store) AppendAudit(ctx context.Context, e audit.Entry) error {
	if s.db == nil {
		return errNoDB
	}
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("marshal audit fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_logs (id, ts, event, request_id, user_id, fields)
		values ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Timestamp, e.Event, nullIfEmpty(e.RequestID), nullIfEmpty(e.UserID), fields)
	return err
}

func (s *Store) ListAudit(ctx context.Context, offset, limit int) ([]audit.Entry, int, error) {
	if s.db == nil {
		return nil, 0, errNoDB
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from audit_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, ts, event, request_id, user_id, fields
		from audit_logs
		order by ts desc, id desc
		offset $1 limit $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []audit.Entry{}
	for rows.Next() {
		var (
			e                 audit.Entry
			requestID, userID sql.NullString
			raw               []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Event, &requestID, &userID, &raw); err != nil {
			return nil, 0, err
		}
		e.RequestID, e.UserID = requestID.String, userID.String
		e.Fields = map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Fields); err != nil {
				return nil, 0, fmt.Errorf("decode audit fields: %w", err)
			}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}
