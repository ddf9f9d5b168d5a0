package rbac

import (
	"context"
	"errors"
	"sort"
)

// memStore is a map-backed Store for tests.
type memStore struct {
	grants map[int64]Grant
	nextID int64
	err    error
	calls  int
}

func newMemStore(grants ...Grant) *memStore {
	s := &memStore{grants: make(map[int64]Grant)}
	for _, g := range grants {
		s.nextID++
		g.ID = s.nextID
		s.grants[g.ID] = g
	}
	return s
}

func (s *memStore) filter(keep func(Grant) bool) ([]Grant, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []Grant
	for _, g := range s.grants {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) FindByRoleAndFeature(_ context.Context, role Role, feature string) ([]Grant, error) {
	return s.filter(func(g Grant) bool { return g.Role == role && g.Feature == feature })
}

func (s *memStore) ListGrants(context.Context) ([]Grant, error) {
	return s.filter(func(Grant) bool { return true })
}

func (s *memStore) GetGrant(_ context.Context, id int64) (Grant, error) {
	if s.err != nil {
		return Grant{}, s.err
	}
	g, ok := s.grants[id]
	if !ok {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

func (s *memStore) FindByRole(_ context.Context, role Role) ([]Grant, error) {
	return s.filter(func(g Grant) bool { return g.Role == role })
}

func (s *memStore) FindByFeature(_ context.Context, feature string) ([]Grant, error) {
	return s.filter(func(g Grant) bool { return g.Feature == feature })
}

func (s *memStore) FindByRoleFeatureAndAction(ctx context.Context, role Role, feature string, action Action) (Grant, error) {
	gs, err := s.filter(func(g Grant) bool { return g.Role == role && g.Feature == feature && g.Action == action })
	if err != nil {
		return Grant{}, err
	}
	if len(gs) == 0 {
		return Grant{}, ErrNotFound
	}
	return gs[0], nil
}

func (s *memStore) UpsertGrant(ctx context.Context, role Role, feature string, action Action) (Grant, error) {
	g, err := s.FindByRoleFeatureAndAction(ctx, role, feature, action)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Grant{}, err
	}
	s.nextID++
	g = Grant{ID: s.nextID, Role: role, Feature: feature, Action: action}
	s.grants[g.ID] = g
	return g, nil
}

func (s *memStore) DeleteGrant(ctx context.Context, role Role, feature string, action Action) error {
	g, err := s.FindByRoleFeatureAndAction(ctx, role, feature, action)
	if err != nil {
		return err
	}
	delete(s.grants, g.ID)
	return nil
}
