package rbac

import (
	"fmt"
	"strings"
)

// Role is an authority level a user holds within one organization.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleViewer Role = "VIEWER"
)

// Roles lists every known role, highest rank first.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleViewer}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleViewer:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// ParseRole accepts any letter case and surrounding whitespace.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Action is one of the four CRUD verbs a grant can allow.
type Action string

const (
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
	ActionEdit   Action = "edit"
	ActionView   Action = "view"
)

// Actions lists every known action.
func Actions() []Action {
	return []Action{ActionCreate, ActionDelete, ActionEdit, ActionView}
}

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionDelete, ActionEdit, ActionView:
		return true
	default:
		return false
	}
}

func (a Action) String() string { return string(a) }

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Grant directly allows Role to perform Action on Feature.
// Grants are unique per (role, feature, action).
type Grant struct {
	ID      int64  `json:"id"`
	Role    Role   `json:"role"`
	Feature string `json:"feature"`
	Action  Action `json:"action"`
}

// PermissionSet holds one flag per action for a (role, feature) pair.
type PermissionSet struct {
	Create bool `json:"create"`
	Delete bool `json:"delete"`
	Edit   bool `json:"edit"`
	View   bool `json:"view"`
}

// Allows reports the flag for a. Unknown actions are never allowed.
func (p PermissionSet) Allows(a Action) bool {
	switch a {
	case ActionCreate:
		return p.Create
	case ActionDelete:
		return p.Delete
	case ActionEdit:
		return p.Edit
	case ActionView:
		return p.View
	default:
		return false
	}
}

// With returns a copy of p with a set. Unknown actions leave p unchanged.
func (p PermissionSet) With(a Action) PermissionSet {
	switch a {
	case ActionCreate:
		p.Create = true
	case ActionDelete:
		p.Delete = true
	case ActionEdit:
		p.Edit = true
	case ActionView:
		p.View = true
	}
	return p
}

// Union ORs every flag of o into p.
func (p PermissionSet) Union(o PermissionSet) PermissionSet {
	return PermissionSet{
		Create: p.Create || o.Create,
		Delete: p.Delete || o.Delete,
		Edit:   p.Edit || o.Edit,
		View:   p.View || o.View,
	}
}

// FromGrants reduces grants to a PermissionSet. Duplicate grants are harmless.
func FromGrants(grants []Grant) PermissionSet {
	var set PermissionSet
	for _, g := range grants {
		set = set.With(g.Action)
	}
	return set
}
