package org

import (
	"errors"
	"time"

	"tms.dev/internal/rbac"
)

var (
	ErrNotFound     = errors.New("organization not found")
	ErrCycle        = errors.New("organization hierarchy cycle")
	ErrInvalidInput = errors.New("invalid organization input")
	ErrConflict     = errors.New("organization conflict")
)

// Organization is a node in the org tree. ParentOrgID is nil for top-level orgs.
// Parent is the immediate parent as loaded by reads; writes leave it nil.
type Organization struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	ParentOrgID *int64        `json:"parentOrgId"`
	Parent      *Organization `json:"parentOrganization,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// IsTopLevel reports whether the organization has no parent.
func (o Organization) IsTopLevel() bool { return o.ParentOrgID == nil }

// Membership grants UserID exactly one Role inside OrgID.
type Membership struct {
	OrgID  int64     `json:"orgId"`
	UserID string    `json:"userId"`
	Role   rbac.Role `json:"role"`
}

// Member is the public projection of a membership inside an organization listing.
type Member struct {
	Email string    `json:"email"`
	Role  rbac.Role `json:"role"`
}

// WithUsers is an organization with its direct members. Users is never nil.
type WithUsers struct {
	Organization
	Users []Member `json:"users"`
}

// MemberRow is one row of the organization ⟕ membership ⟕ user join.
// Member is nil for organizations without members.
type MemberRow struct {
	OrgID       int64
	OrgName     string
	ParentOrgID *int64
	Member      *Member
}
