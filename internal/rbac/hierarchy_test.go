package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHierarchySubordinates(t *testing.T) {
	h := DefaultHierarchy()
	assert.Equal(t, []Role{RoleOwner, RoleAdmin, RoleViewer}, h.Order())
	assert.Equal(t, []Role{RoleAdmin, RoleViewer}, h.Subordinates(RoleOwner))
	assert.Equal(t, []Role{RoleViewer}, h.Subordinates(RoleAdmin))
	assert.Empty(t, h.Subordinates(RoleViewer))
	assert.Empty(t, h.Subordinates(Role("GUEST")))
}

func TestHierarchyNeverSelfSubordinate(t *testing.T) {
	h := DefaultHierarchy()
	for _, r := range h.Order() {
		assert.NotContains(t, h.Subordinates(r), r)
		for _, sub := range h.Subordinates(r) {
			assert.True(t, h.Outranks(r, sub))
			assert.False(t, h.Outranks(sub, r))
		}
	}
}

func TestSubordinatesReturnsCopy(t *testing.T) {
	h := DefaultHierarchy()
	subs := h.Subordinates(RoleOwner)
	subs[0] = RoleViewer
	assert.Equal(t, []Role{RoleAdmin, RoleViewer}, h.Subordinates(RoleOwner))
}

func TestNewHierarchyRejectsBadOrders(t *testing.T) {
	cases := map[string][]Role{
		"empty":     nil,
		"short":     {RoleOwner, RoleAdmin},
		"duplicate": {RoleOwner, RoleOwner, RoleViewer},
	}
	for name, order := range cases {
		_, err := NewHierarchy(order...)
		require.ErrorIs(t, err, ErrInvalidHierarchy, name)
	}
	_, err := NewHierarchy(RoleOwner, RoleAdmin, Role("GUEST"))
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestParseHierarchy(t *testing.T) {
	h, err := ParseHierarchy([]string{"owner", " Admin ", "VIEWER"})
	require.NoError(t, err)
	assert.Equal(t, Roles(), h.Order())

	_, err = ParseHierarchy([]string{"owner", "admin", "guest"})
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestPermissionSetAllowsUnknownAction(t *testing.T) {
	all := PermissionSet{Create: true, Delete: true, Edit: true, View: true}
	assert.False(t, all.Allows(Action("archive")))
	assert.Equal(t, PermissionSet{}, PermissionSet{}.With(Action("archive")))
}
