package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store persists grants. Writes are single-row and atomic at the store.
type Store interface {
	GrantFinder
	ListGrants(ctx context.Context) ([]Grant, error)
	GetGrant(ctx context.Context, id int64) (Grant, error)
	FindByRole(ctx context.Context, role Role) ([]Grant, error)
	FindByFeature(ctx context.Context, feature string) ([]Grant, error)
	FindByRoleFeatureAndAction(ctx context.Context, role Role, feature string, action Action) (Grant, error)
	UpsertGrant(ctx context.Context, role Role, feature string, action Action) (Grant, error)
	DeleteGrant(ctx context.Context, role Role, feature string, action Action) error
}

// Service exposes the grant catalogue and provisioning.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	return &Service{store: store}, nil
}

func (s *Service) List(ctx context.Context) ([]Grant, error) {
	return s.store.ListGrants(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Grant, error) {
	if id <= 0 {
		return Grant{}, fmt.Errorf("%w: grant id must be positive", ErrInvalidInput)
	}
	return s.store.GetGrant(ctx, id)
}

func (s *Service) ListByRole(ctx context.Context, role Role) ([]Grant, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return s.store.FindByRole(ctx, role)
}

func (s *Service) ListByFeature(ctx context.Context, feature string) ([]Grant, error) {
	return s.store.FindByFeature(ctx, strings.TrimSpace(feature))
}

func (s *Service) ListByRoleAndFeature(ctx context.Context, role Role, feature string) ([]Grant, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return s.store.FindByRoleAndFeature(ctx, role, strings.TrimSpace(feature))
}

// FindByRoleFeatureAndAction returns ErrNotFound when no such direct grant exists.
func (s *Service) FindByRoleFeatureAndAction(ctx context.Context, role Role, feature string, action Action) (Grant, error) {
	if err := validateTriple(role, feature, action); err != nil {
		return Grant{}, err
	}
	return s.store.FindByRoleFeatureAndAction(ctx, role, strings.TrimSpace(feature), action)
}

// RolesWithPermission lists roles holding a direct grant for action on feature.
func (s *Service) RolesWithPermission(ctx context.Context, feature string, action Action) ([]Role, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	grants, err := s.store.FindByFeature(ctx, strings.TrimSpace(feature))
	if err != nil {
		return nil, err
	}
	var roles []Role
	for _, g := range grants {
		if g.Action == action {
			roles = append(roles, g.Role)
		}
	}
	return roles, nil
}

// Grant is idempotent: granting an existing triple returns the stored row.
func (s *Service) Grant(ctx context.Context, role Role, feature string, action Action) (Grant, error) {
	if err := validateTriple(role, feature, action); err != nil {
		return Grant{}, err
	}
	return s.store.UpsertGrant(ctx, role, strings.TrimSpace(feature), action)
}

func (s *Service) Revoke(ctx context.Context, role Role, feature string, action Action) error {
	if err := validateTriple(role, feature, action); err != nil {
		return err
	}
	return s.store.DeleteGrant(ctx, role, strings.TrimSpace(feature), action)
}

func validateTriple(role Role, feature string, action Action) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if strings.TrimSpace(feature) == "" {
		return fmt.Errorf("%w: feature is required", ErrInvalidInput)
	}
	return nil
}
