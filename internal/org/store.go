package org

import "context"

// Store persists organizations and memberships.
type Store interface {
	ListOrganizations(ctx context.Context) ([]Organization, error)
	GetOrganization(ctx context.Context, id int64) (Organization, error)
	ListTopLevel(ctx context.Context) ([]Organization, error)
	ListChildren(ctx context.Context, parentID int64) ([]Organization, error)
	// ListByUser returns one entry per membership row of userID, each with Parent set.
	ListByUser(ctx context.Context, userID string) ([]Organization, error)
	// ListMemberRows returns the left join of organizations and their members, ordered by org id.
	ListMemberRows(ctx context.Context) ([]MemberRow, error)
	CreateOrganization(ctx context.Context, name string, parentID *int64) (Organization, error)
	// UpdateParent must reject, atomically with the write, a parentID equal
	// to id or lying below id, returning ErrCycle. Concurrent calls must not
	// be able to close a loop between them.
	UpdateParent(ctx context.Context, id int64, parentID *int64) (Organization, error)
	UpsertMembership(ctx context.Context, m Membership) (Membership, error)
	GetMembership(ctx context.Context, orgID int64, userID string) (Membership, error)
}
