package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectivePermissions(t *testing.T) {
	store := newMemStore(
		Grant{Role: RoleViewer, Feature: "tasks", Action: ActionView},
		Grant{Role: RoleAdmin, Feature: "tasks", Action: ActionCreate},
		Grant{Role: RoleAdmin, Feature: "tasks", Action: ActionEdit},
		Grant{Role: RoleOwner, Feature: "tasks", Action: ActionDelete},
		Grant{Role: RoleOwner, Feature: "billing", Action: ActionView},
	)
	r, err := NewResolver(store)
	require.NoError(t, err)

	cases := []struct {
		name    string
		role    Role
		feature string
		want    PermissionSet
	}{
		{"viewer direct only", RoleViewer, "tasks", PermissionSet{View: true}},
		{"admin inherits view", RoleAdmin, "tasks", PermissionSet{Create: true, Edit: true, View: true}},
		{"owner inherits all", RoleOwner, "tasks", PermissionSet{Create: true, Delete: true, Edit: true, View: true}},
		{"grants do not flow upward to lower roles", RoleAdmin, "billing", PermissionSet{}},
		{"owner direct on billing", RoleOwner, "billing", PermissionSet{View: true}},
		{"unknown feature", RoleOwner, "reports", PermissionSet{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.EffectivePermissions(context.Background(), tc.role, tc.feature)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEffectiveIsUnionOfDirectAndInherited(t *testing.T) {
	store := newMemStore(
		Grant{Role: RoleViewer, Feature: "tasks", Action: ActionView},
		Grant{Role: RoleAdmin, Feature: "tasks", Action: ActionView},
		Grant{Role: RoleAdmin, Feature: "tasks", Action: ActionCreate},
	)
	r, err := NewResolver(store)
	require.NoError(t, err)
	ctx := context.Background()

	for _, role := range Roles() {
		direct, err := r.DirectPermissions(ctx, role, "tasks")
		require.NoError(t, err)
		inherited, err := r.InheritedPermissions(ctx, role, "tasks")
		require.NoError(t, err)
		effective, err := r.EffectivePermissions(ctx, role, "tasks")
		require.NoError(t, err)
		assert.Equal(t, direct.Union(inherited), effective, role)
	}

	inherited, err := r.InheritedPermissions(ctx, RoleViewer, "tasks")
	require.NoError(t, err)
	assert.Equal(t, PermissionSet{}, inherited, "lowest role inherits nothing")
}

func TestEffectivePermissionsRecomputedPerQuery(t *testing.T) {
	store := newMemStore()
	r, err := NewResolver(store)
	require.NoError(t, err)
	ctx := context.Background()

	before, err := r.EffectivePermissions(ctx, RoleOwner, "tasks")
	require.NoError(t, err)
	assert.False(t, before.View)

	_, err = store.UpsertGrant(ctx, RoleViewer, "tasks", ActionView)
	require.NoError(t, err)

	after, err := r.EffectivePermissions(ctx, RoleOwner, "tasks")
	require.NoError(t, err)
	assert.True(t, after.View)
}

func TestEffectivePermissionsCustomHierarchy(t *testing.T) {
	h, err := NewHierarchy(RoleAdmin, RoleOwner, RoleViewer)
	require.NoError(t, err)
	store := newMemStore(Grant{Role: RoleOwner, Feature: "tasks", Action: ActionDelete})
	r, err := NewResolver(store, WithHierarchy(h))
	require.NoError(t, err)

	got, err := r.EffectivePermissions(context.Background(), RoleAdmin, "tasks")
	require.NoError(t, err)
	assert.True(t, got.Delete)
}

func TestEffectivePermissionsUnknownRole(t *testing.T) {
	r, err := NewResolver(newMemStore())
	require.NoError(t, err)
	_, err = r.EffectivePermissions(context.Background(), Role("GUEST"), "tasks")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestEffectivePermissionsStoreFailure(t *testing.T) {
	store := newMemStore()
	boom := errors.New("connection reset")
	store.err = boom
	r, err := NewResolver(store)
	require.NoError(t, err)

	_, err = r.EffectivePermissions(context.Background(), RoleAdmin, "tasks")
	require.ErrorIs(t, err, boom)
}

func TestHasPermission(t *testing.T) {
	store := newMemStore(
		Grant{Role: RoleViewer, Feature: "tasks", Action: ActionView},
		Grant{Role: RoleAdmin, Feature: "tasks", Action: ActionEdit},
	)
	r, err := NewResolver(store)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := r.HasPermission(ctx, RoleAdmin, "tasks", ActionView)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasPermission(ctx, RoleViewer, "tasks", ActionEdit)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.HasPermission(ctx, RoleViewer, "tasks", Action("archive"))
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestNewResolverRequiresStore(t *testing.T) {
	_, err := NewResolver(nil)
	require.Error(t, err)
}

func TestResolverTrimsFeatureLikeService(t *testing.T) {
	store := newMemStore(
		Grant{Role: RoleViewer, Feature: "tasks", Action: ActionView},
		Grant{Role: RoleAdmin, Feature: "tasks", Action: ActionEdit},
	)
	r, err := NewResolver(store)
	require.NoError(t, err)
	svc, err := NewService(store)
	require.NoError(t, err)
	ctx := context.Background()

	viaService, err := svc.ListByRoleAndFeature(ctx, RoleAdmin, " tasks ")
	require.NoError(t, err)
	require.Len(t, viaService, 1)

	got, err := r.EffectivePermissions(ctx, RoleAdmin, " tasks ")
	require.NoError(t, err)
	assert.Equal(t, PermissionSet{Edit: true, View: true}, got)

	ok, err := r.HasPermission(ctx, RoleAdmin, "\ttasks", ActionView)
	require.NoError(t, err)
	assert.True(t, ok)
}
