package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tms.dev/internal/obs"
	"tms.dev/internal/org"
	"tms.dev/internal/rbac"
)

// Service is organization-scoped task CRUD. Every call is authorized
// against the actor's role in the organization.
type Service struct {
	store   Store
	roles   RoleLookup
	perms   PermissionChecker
	auditor Auditor
	now     func() time.Time
	log     logrus.FieldLogger
}

type Option func(*Service)

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(store Store, roles RoleLookup, perms PermissionChecker, opts ...Option) (*Service, error) {
	if store == nil || roles == nil || perms == nil {
		return nil, errors.New("task: store, role lookup and permission checker are required")
	}
	s := &Service{
		store: store,
		roles: roles,
		perms: perms,
		now:   time.Now,
		log:   obs.Logger().WithField("component", "task"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Create(ctx context.Context, actor string, orgID int64, in CreateInput) (Task, error) {
	if err := s.authorize(ctx, actor, orgID, rbac.ActionCreate); err != nil {
		return Task{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Task{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	now := s.now().UTC()
	created, err := s.store.CreateTask(ctx, Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: in.Description,
		IsCompleted: in.IsCompleted,
		OrgID:       orgID,
		OwnerID:     actor,
		Category:    strings.TrimSpace(in.Category),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Task{}, err
	}
	s.audit(ctx, "task.created", created)
	return created, nil
}

func (s *Service) Get(ctx context.Context, actor string, orgID int64, id string) (Task, error) {
	if err := s.authorize(ctx, actor, orgID, rbac.ActionView); err != nil {
		return Task{}, err
	}
	return s.load(ctx, orgID, id)
}

func (s *Service) ListByOrg(ctx context.Context, actor string, orgID int64) ([]Task, error) {
	if err := s.authorize(ctx, actor, orgID, rbac.ActionView); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasksByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

func (s *Service) Update(ctx context.Context, actor string, orgID int64, id string, in UpdateInput) (Task, error) {
	if err := s.authorize(ctx, actor, orgID, rbac.ActionEdit); err != nil {
		return Task{}, err
	}
	t, err := s.load(ctx, orgID, id)
	if err != nil {
		return Task{}, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return Task{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		t.Title = title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Category != nil {
		t.Category = strings.TrimSpace(*in.Category)
	}
	if in.IsCompleted != nil {
		t.IsCompleted = *in.IsCompleted
	}
	return s.save(ctx, "task.updated", t)
}

func (s *Service) ToggleComplete(ctx context.Context, actor string, orgID int64, id string) (Task, error) {
	if err := s.authorize(ctx, actor, orgID, rbac.ActionEdit); err != nil {
		return Task{}, err
	}
	t, err := s.load(ctx, orgID, id)
	if err != nil {
		return Task{}, err
	}
	t.IsCompleted = !t.IsCompleted
	return s.save(ctx, "task.toggled", t)
}

func (s *Service) Delete(ctx context.Context, actor string, orgID int64, id string) error {
	if err := s.authorize(ctx, actor, orgID, rbac.ActionDelete); err != nil {
		return err
	}
	t, err := s.load(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, orgID, id); err != nil {
		return err
	}
	s.audit(ctx, "task.deleted", t)
	return nil
}

func (s *Service) authorize(ctx context.Context, actor string, orgID int64, action rbac.Action) error {
	if strings.TrimSpace(actor) == "" {
		return ErrForbidden
	}
	role, err := s.roles.RoleFor(ctx, orgID, actor)
	if errors.Is(err, org.ErrNotFound) {
		return fmt.Errorf("%w: no membership in organization %d", ErrForbidden, orgID)
	}
	if err != nil {
		return fmt.Errorf("resolve role: %w", err)
	}
	ok, err := s.perms.HasPermission(ctx, role, Feature, action)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s cannot %s tasks", ErrForbidden, role, action)
	}
	return nil
}

func (s *Service) load(ctx context.Context, orgID int64, id string) (Task, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return Task{}, fmt.Errorf("%w: task with ID %s", ErrNotFound, id)
	}
	return s.store.GetTask(ctx, orgID, id)
}

func (s *Service) save(ctx context.Context, event string, t Task) (Task, error) {
	t.UpdatedAt = s.now().UTC()
	updated, err := s.store.UpdateTask(ctx, t)
	if err != nil {
		return Task{}, err
	}
	s.audit(ctx, event, updated)
	return updated, nil
}

// audit failures are logged; the task write has already committed.
func (s *Service) audit(ctx context.Context, event string, t Task) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.LogEvent(ctx, event, map[string]any{
		"task_id":      t.ID,
		"org_id":       t.OrgID,
		"is_completed": t.IsCompleted,
	})
	if err != nil {
		s.log.WithError(err).WithField("event", event).Warn("audit write failed")
	}
}
