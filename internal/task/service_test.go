package task

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tms.dev/internal/org"
	"tms.dev/internal/rbac"
)

type memTasks struct {
	tasks map[string]Task
}

func (m *memTasks) CreateTask(_ context.Context, t Task) (Task, error) {
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memTasks) GetTask(_ context.Context, orgID int64, id string) (Task, error) {
	t, ok := m.tasks[id]
	if !ok || t.OrgID != orgID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (m *memTasks) ListTasksByOrg(_ context.Context, orgID int64) ([]Task, error) {
	var out []Task
	for _, t := range m.tasks {
		if t.OrgID == orgID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) UpdateTask(_ context.Context, t Task) (Task, error) {
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memTasks) DeleteTask(_ context.Context, _ int64, id string) error {
	delete(m.tasks, id)
	return nil
}

type memRoles map[int64]map[string]rbac.Role

func (m memRoles) RoleFor(_ context.Context, orgID int64, userID string) (rbac.Role, error) {
	role, ok := m[orgID][userID]
	if !ok {
		return "", org.ErrNotFound
	}
	return role, nil
}

type staticGrants []rbac.Grant

func (g staticGrants) FindByRoleAndFeature(_ context.Context, role rbac.Role, feature string) ([]rbac.Grant, error) {
	var out []rbac.Grant
	for _, gr := range g {
		if gr.Role == role && gr.Feature == feature {
			out = append(out, gr)
		}
	}
	return out, nil
}

type recordingAuditor struct {
	events []string
}

func (r *recordingAuditor) LogEvent(_ context.Context, event string, _ map[string]any) error {
	r.events = append(r.events, event)
	return nil
}

const (
	orgA int64 = 1
	orgB int64 = 2
)

type fixture struct {
	svc     *Service
	store   *memTasks
	auditor *recordingAuditor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	grants := staticGrants{
		{Role: rbac.RoleViewer, Feature: Feature, Action: rbac.ActionView},
		{Role: rbac.RoleAdmin, Feature: Feature, Action: rbac.ActionCreate},
		{Role: rbac.RoleAdmin, Feature: Feature, Action: rbac.ActionEdit},
		{Role: rbac.RoleOwner, Feature: Feature, Action: rbac.ActionDelete},
	}
	resolver, err := rbac.NewResolver(grants)
	require.NoError(t, err)
	roles := memRoles{
		orgA: {"owner": rbac.RoleOwner, "admin": rbac.RoleAdmin, "viewer": rbac.RoleViewer},
		orgB: {"viewer": rbac.RoleViewer},
	}
	store := &memTasks{tasks: map[string]Task{}}
	auditor := &recordingAuditor{}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewService(store, roles, resolver,
		WithAuditor(auditor),
		WithLogger(quiet),
		WithClock(func() time.Time { return clock }),
	)
	require.NoError(t, err)
	return fixture{svc: svc, store: store, auditor: auditor}
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, "admin", orgA, CreateInput{Title: " Write report ", Category: "work"})
	require.NoError(t, err)
	assert.Equal(t, "Write report", created.Title)
	assert.Equal(t, "admin", created.OwnerID)
	assert.Equal(t, orgA, created.OrgID)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, "viewer", orgA, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	toggled, err := f.svc.ToggleComplete(ctx, "admin", orgA, created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsCompleted)

	desc := "quarterly"
	updated, err := f.svc.Update(ctx, "owner", orgA, created.ID, UpdateInput{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "quarterly", updated.Description)
	assert.Equal(t, "Write report", updated.Title)
	assert.True(t, updated.IsCompleted)

	list, err := f.svc.ListByOrg(ctx, "viewer", orgA)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.svc.Delete(ctx, "owner", orgA, created.ID))
	_, err = f.svc.Get(ctx, "owner", orgA, created.ID)
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"task.created", "task.toggled", "task.updated", "task.deleted"}, f.auditor.events)
}

func TestTaskAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "admin", orgA, CreateInput{Title: "t"})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, "viewer", orgA, CreateInput{Title: "t"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ToggleComplete(ctx, "viewer", orgA, created.ID)
	require.ErrorIs(t, err, ErrForbidden)

	err = f.svc.Delete(ctx, "admin", orgA, created.ID)
	require.ErrorIs(t, err, ErrForbidden, "delete is granted to owners only")

	_, err = f.svc.ListByOrg(ctx, "stranger", orgA)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Get(ctx, "viewer", orgB, created.ID)
	require.ErrorIs(t, err, ErrNotFound, "tasks are scoped to their organization")
}

func TestTaskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "admin", orgA, CreateInput{Title: "   "})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Get(ctx, "admin", orgA, "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)

	created, err := f.svc.Create(ctx, "admin", orgA, CreateInput{Title: "ok"})
	require.NoError(t, err)
	empty := ""
	_, err = f.svc.Update(ctx, "admin", orgA, created.ID, UpdateInput{Title: &empty})
	require.ErrorIs(t, err, ErrInvalidInput)
}

type failingRoles struct{ err error }

func (f failingRoles) RoleFor(context.Context, int64, string) (rbac.Role, error) {
	return "", f.err
}

func TestRoleLookupFailurePropagates(t *testing.T) {
	boom := errors.New("db down")
	resolver, err := rbac.NewResolver(staticGrants{})
	require.NoError(t, err)
	svc, err := NewService(&memTasks{tasks: map[string]Task{}}, failingRoles{err: boom}, resolver)
	require.NoError(t, err)

	_, err = svc.ListByOrg(context.Background(), "admin", orgA)
	require.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrForbidden))
}
