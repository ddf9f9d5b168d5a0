package org

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"tms.dev/internal/obs"
	"tms.dev/internal/rbac"
)

// Service answers organization tree and membership queries.
type Service struct {
	store Store
	log   logrus.FieldLogger
}

// Option configures the organization service.
type Option func(*Service)

// WithLogger overrides the default obs logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("organization store is required")
	}
	s := &Service{store: store, log: obs.Logger().WithField("component", "org")}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) FindAll(ctx context.Context) ([]Organization, error) {
	return s.store.ListOrganizations(ctx)
}

// FindByID returns ErrNotFound for unknown ids.
func (s *Service) FindByID(ctx context.Context, id int64) (Organization, error) {
	return s.store.GetOrganization(ctx, id)
}

// FindTopLevel returns exactly the organizations without a parent.
func (s *Service) FindTopLevel(ctx context.Context) ([]Organization, error) {
	return s.store.ListTopLevel(ctx)
}

// FindChildren returns direct children of id only.
func (s *Service) FindChildren(ctx context.Context, id int64) ([]Organization, error) {
	return s.store.ListChildren(ctx, id)
}

// FindByUser lists the organizations userID belongs to, parent populated.
// A user without memberships gets an empty slice.
func (s *Service) FindByUser(ctx context.Context, userID string) ([]Organization, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	orgs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orgs == nil {
		orgs = []Organization{}
	}
	return orgs, nil
}

// FindAllWithUsers groups membership rows by organization. Organizations
// without members are kept with an empty Users list.
func (s *Service) FindAllWithUsers(ctx context.Context) ([]WithUsers, error) {
	rows, err := s.store.ListMemberRows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WithUsers, 0, len(rows))
	index := make(map[int64]int, len(rows))
	for _, row := range rows {
		i, ok := index[row.OrgID]
		if !ok {
			out = append(out, WithUsers{
				Organization: Organization{ID: row.OrgID, Name: row.OrgName, ParentOrgID: row.ParentOrgID},
				Users:        []Member{},
			})
			i = len(out) - 1
			index[row.OrgID] = i
		}
		if row.Member != nil && row.Member.Email != "" {
			out[i].Users = append(out[i].Users, *row.Member)
		}
	}
	return out, nil
}

// Ancestors walks from id's parent up to the root, nearest first.
func (s *Service) Ancestors(ctx context.Context, id int64) ([]Organization, error) {
	cur, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	visited := map[int64]bool{id: true}
	var chain []Organization
	for cur.ParentOrgID != nil {
		pid := *cur.ParentOrgID
		if visited[pid] {
			return nil, fmt.Errorf("%w: organization %d reached twice above %d", ErrCycle, pid, id)
		}
		visited[pid] = true
		parent, err := s.store.GetOrganization(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("load parent %d: %w", pid, err)
		}
		chain = append(chain, parent)
		cur = parent
	}
	return chain, nil
}

// Descendants returns every organization below id, breadth first.
func (s *Service) Descendants(ctx context.Context, id int64) ([]Organization, error) {
	if _, err := s.store.GetOrganization(ctx, id); err != nil {
		return nil, err
	}
	visited := map[int64]bool{id: true}
	queue := []int64{id}
	var out []Organization
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		children, err := s.store.ListChildren(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if visited[c.ID] {
				return nil, fmt.Errorf("%w: organization %d reached twice below %d", ErrCycle, c.ID, id)
			}
			visited[c.ID] = true
			out = append(out, c)
			queue = append(queue, c.ID)
		}
	}
	return out, nil
}

// Create inserts an organization. A new node has no children, so it cannot close a cycle.
func (s *Service) Create(ctx context.Context, name string, parentID *int64) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if parentID != nil {
		if _, err := s.store.GetOrganization(ctx, *parentID); err != nil {
			return Organization{}, fmt.Errorf("parent %d: %w", *parentID, err)
		}
	}
	created, err := s.store.CreateOrganization(ctx, name, parentID)
	if err != nil {
		return Organization{}, err
	}
	s.log.WithFields(logrus.Fields{"org_id": created.ID, "parent_org_id": derefID(parentID)}).Info("organization created")
	return created, nil
}

// Reparent moves id under parentID, or to the top level when parentID is nil.
// It refuses moves that would put id below itself.
func (s *Service) Reparent(ctx context.Context, id int64, parentID *int64) (Organization, error) {
	if _, err := s.store.GetOrganization(ctx, id); err != nil {
		return Organization{}, err
	}
	if parentID != nil {
		if *parentID == id {
			return Organization{}, fmt.Errorf("%w: organization %d cannot be its own parent", ErrCycle, id)
		}
		if _, err := s.store.GetOrganization(ctx, *parentID); err != nil {
			return Organization{}, fmt.Errorf("parent %d: %w", *parentID, err)
		}
	}
	// the descendant check runs inside the store write
	updated, err := s.store.UpdateParent(ctx, id, parentID)
	if errors.Is(err, ErrCycle) {
		s.log.WithFields(logrus.Fields{"org_id": id, "parent_org_id": derefID(parentID)}).Warn("reparent rejected: cycle")
		return Organization{}, err
	}
	if err != nil {
		return Organization{}, err
	}
	s.log.WithFields(logrus.Fields{"org_id": id, "parent_org_id": derefID(parentID)}).Info("organization reparented")
	return updated, nil
}

// AssignRole sets userID's single role in orgID, replacing any previous one.
func (s *Service) AssignRole(ctx context.Context, orgID int64, userID string, role rbac.Role) (Membership, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Membership{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return Membership{}, fmt.Errorf("%w: %q", rbac.ErrUnknownRole, role)
	}
	m, err := s.store.UpsertMembership(ctx, Membership{OrgID: orgID, UserID: userID, Role: role})
	if err != nil {
		return Membership{}, err
	}
	s.log.WithFields(logrus.Fields{"org_id": orgID, "user_id": userID, "role": role}).Info("membership assigned")
	return m, nil
}

// RoleFor returns ErrNotFound when userID holds no role in orgID.
func (s *Service) RoleFor(ctx context.Context, orgID int64, userID string) (rbac.Role, error) {
	m, err := s.store.GetMembership(ctx, orgID, userID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// CheckAcyclic scans the whole parent relation and reports the first
// organization found on a cycle, by ascending id.
func (s *Service) CheckAcyclic(ctx context.Context) error {
	orgs, err := s.store.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	parent := make(map[int64]*int64, len(orgs))
	ids := make([]int64, 0, len(orgs))
	for _, o := range orgs {
		parent[o.ID] = o.ParentOrgID
		ids = append(ids, o.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	const (
		unseen = iota
		walking
		done
	)
	state := make(map[int64]int, len(ids))
	for _, start := range ids {
		if state[start] == done {
			continue
		}
		var path []int64
		cur := start
		for {
			if state[cur] == walking {
				return fmt.Errorf("%w: organization %d", ErrCycle, cur)
			}
			if state[cur] == done {
				break
			}
			state[cur] = walking
			path = append(path, cur)
			p, known := parent[cur]
			if !known || p == nil {
				break
			}
			cur = *p
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return nil
}

func derefID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
