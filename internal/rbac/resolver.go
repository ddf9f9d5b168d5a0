package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tms.dev/internal/obs"
)

// GrantFinder is the read side of the grant store used by the resolver.
type GrantFinder interface {
	FindByRoleAndFeature(ctx context.Context, role Role, feature string) ([]Grant, error)
}

// Resolver computes effective permissions: a role's direct grants ORed
// with the grants of every role below it in the hierarchy. Nothing is
// cached; each call reads the store.
type Resolver struct {
	grants    GrantFinder
	hierarchy *Hierarchy
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHierarchy replaces the default OWNER > ADMIN > VIEWER order.
func WithHierarchy(h *Hierarchy) ResolverOption {
	return func(r *Resolver) {
		if h != nil {
			r.hierarchy = h
		}
	}
}

func NewResolver(grants GrantFinder, opts ...ResolverOption) (*Resolver, error) {
	if grants == nil {
		return nil, errors.New("rbac: grant store is required")
	}
	r := &Resolver{grants: grants, hierarchy: DefaultHierarchy()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Hierarchy returns the role order the resolver was built with.
func (r *Resolver) Hierarchy() *Hierarchy { return r.hierarchy }

// EffectivePermissions returns direct ∪ inherited permissions of role on feature.
// A feature nobody holds grants for yields an all-false set.
func (r *Resolver) EffectivePermissions(ctx context.Context, role Role, feature string) (PermissionSet, error) {
	if !r.hierarchy.Contains(role) {
		return PermissionSet{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	direct, err := r.DirectPermissions(ctx, role, feature)
	if err != nil {
		return PermissionSet{}, err
	}
	inherited, err := r.InheritedPermissions(ctx, role, feature)
	if err != nil {
		return PermissionSet{}, err
	}
	return direct.Union(inherited), nil
}

// DirectPermissions reduces the role's own grants on feature.
// Feature names are trimmed the same way Service stores them.
func (r *Resolver) DirectPermissions(ctx context.Context, role Role, feature string) (PermissionSet, error) {
	feature = strings.TrimSpace(feature)
	grants, err := r.grants.FindByRoleAndFeature(ctx, role, feature)
	if err != nil {
		return PermissionSet{}, fmt.Errorf("load grants for %s/%s: %w", role, feature, err)
	}
	return FromGrants(grants), nil
}

// InheritedPermissions ORs the grants of every subordinate role on feature.
// It is always empty for the lowest role.
func (r *Resolver) InheritedPermissions(ctx context.Context, role Role, feature string) (PermissionSet, error) {
	var inherited PermissionSet
	for _, sub := range r.hierarchy.Subordinates(role) {
		set, err := r.DirectPermissions(ctx, sub, feature)
		if err != nil {
			return PermissionSet{}, err
		}
		inherited = inherited.Union(set)
	}
	return inherited, nil
}

// HasPermission reports whether role may perform action on feature.
func (r *Resolver) HasPermission(ctx context.Context, role Role, feature string, action Action) (bool, error) {
	if !action.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	set, err := r.EffectivePermissions(ctx, role, feature)
	if err != nil {
		return false, err
	}
	allowed := set.Allows(action)
	obs.ObservePermissionCheck(strings.TrimSpace(feature), action.String(), allowed)
	return allowed, nil
}
