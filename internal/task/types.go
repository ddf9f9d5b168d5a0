package task

import (
	"context"
	"errors"
	"time"

	"tms.dev/internal/rbac"
)

// Feature is the permission feature name guarding tasks.
const Feature = "tasks"

var (
	ErrNotFound     = errors.New("task not found")
	ErrForbidden    = errors.New("task access forbidden")
	ErrInvalidInput = errors.New("invalid task input")
)

// Task belongs to exactly one organization.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"isCompleted"`
	OrgID       int64     `json:"orgId"`
	OwnerID     string    `json:"ownerId"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateInput struct {
	Title       string
	Description string
	Category    string
	IsCompleted bool
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Category    *string
	IsCompleted *bool
}

// Store persists tasks. Lookups are scoped by organization.
type Store interface {
	CreateTask(ctx context.Context, t Task) (Task, error)
	GetTask(ctx context.Context, orgID int64, id string) (Task, error)
	ListTasksByOrg(ctx context.Context, orgID int64) ([]Task, error)
	UpdateTask(ctx context.Context, t Task) (Task, error)
	DeleteTask(ctx context.Context, orgID int64, id string) error
}

// RoleLookup resolves the caller's role inside an organization.
type RoleLookup interface {
	RoleFor(ctx context.Context, orgID int64, userID string) (rbac.Role, error)
}

// PermissionChecker decides whether a role may act on a feature.
type PermissionChecker interface {
	HasPermission(ctx context.Context, role rbac.Role, feature string, action rbac.Action) (bool, error)
}

// Auditor records task mutations.
type Auditor interface {
	LogEvent(ctx context.Context, event string, fields map[string]any) error
}
