package permissions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldpunch/attendance-backend/pkg/permissions"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		required string
		want     bool
	}{
		{"empty required always allowed", []string{}, "", true},
		{"wildcard admin matches anything", []string{"*"}, "attendance:punch", true},
		{"exact match", []string{"attendance:view"}, "attendance:view", true},
		{"module wildcard matches action", []string{"attendance:*"}, "attendance:report", true},
		{"module wildcard does not cross modules", []string{"attendance:*"}, "report:view", false},
		{"no match", []string{"report:view"}, "attendance:view", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, permissions.HasPermission(tt.perms, tt.required))
		})
	}
}

func TestHasAnyPermission(t *testing.T) {
	perms := []string{"attendance:view"}
	assert.True(t, permissions.HasAnyPermission(perms, []string{"report:view", "attendance:view"}))
	assert.False(t, permissions.HasAnyPermission(perms, []string{"report:view", "user:write"}))
}

func TestHasAllPermissions(t *testing.T) {
	perms := []string{"attendance:view", "attendance:report"}
	assert.True(t, permissions.HasAllPermissions(perms, []string{"attendance:view", "attendance:report"}))
	assert.False(t, permissions.HasAllPermissions(perms, []string{"attendance:view", "attendance:correct"}))
}

func TestExpandWildcard(t *testing.T) {
	known := []string{"attendance:view", "attendance:report", "report:view"}

	assert.ElementsMatch(t, known, permissions.ExpandWildcard("*", known))
	assert.ElementsMatch(t, []string{"attendance:view", "attendance:report"}, permissions.ExpandWildcard("attendance:*", known))
	assert.Equal(t, []string{"report:view"}, permissions.ExpandWildcard("report:view", known))
	assert.Nil(t, permissions.ExpandWildcard("nonexistent:action", known))
}

func TestFilterByPrefix(t *testing.T) {
	perms := []string{"attendance:view", "attendance:report", "report:view", "attendance"}
	assert.ElementsMatch(t, []string{"attendance:view", "attendance:report", "attendance"}, permissions.FilterByPrefix(perms, "attendance"))
}

func TestMergePermissions(t *testing.T) {
	merged := permissions.MergePermissions(
		[]string{"attendance:view", "report:view"},
		[]string{"report:view", "user:read"},
	)
	assert.ElementsMatch(t, []string{"attendance:view", "report:view", "user:read"}, merged)
}

func TestRemovePermissions(t *testing.T) {
	remaining := permissions.RemovePermissions(
		[]string{"attendance:view", "report:view", "user:read"},
		[]string{"report:view"},
	)
	assert.ElementsMatch(t, []string{"attendance:view", "user:read"}, remaining)
}

func TestIsValidPermission(t *testing.T) {
	assert.True(t, permissions.IsValidPermission("*"))
	assert.True(t, permissions.IsValidPermission("attendance:view"))
	assert.True(t, permissions.IsValidPermission("custom:action"))
	assert.False(t, permissions.IsValidPermission("noColon"))
}
