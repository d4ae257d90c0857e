// Package permissions provides utilities for checking permission-string
// slices against a required permission, with support for wildcards.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "module:*" - All actions on a module (e.g., "attendance:*")
//   - "module:action" - Specific action (e.g., "attendance:punch")
package permissions

import (
	"strings"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "attendance:*" matches "attendance:punch", "attendance:view", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "attendance:*"
		if strings.HasSuffix(p, ":*") {
			prefix := strings.TrimSuffix(p, ":*")
			if strings.HasPrefix(required, prefix+":") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the user has all of the required permissions.
func HasAllPermissions(userPerms []string, required []string) bool {
	for _, req := range required {
		if !HasPermission(userPerms, req) {
			return false
		}
	}
	return true
}

// ExpandWildcard expands a wildcard permission pattern to check if it covers
// a set of specific permissions. Returns the list of permissions that would be covered.
func ExpandWildcard(pattern string, allKnownPerms []string) []string {
	if pattern == "*" {
		return allKnownPerms
	}

	if !strings.HasSuffix(pattern, ":*") {
		// Not a wildcard, return as-is if it exists
		for _, p := range allKnownPerms {
			if p == pattern {
				return []string{pattern}
			}
		}
		return nil
	}

	prefix := strings.TrimSuffix(pattern, ":*")
	var matches []string
	for _, p := range allKnownPerms {
		if strings.HasPrefix(p, prefix+":") {
			matches = append(matches, p)
		}
	}
	return matches
}

// FilterByPrefix returns all permissions that match a given module prefix.
// Useful for getting all permissions in a module (e.g., "attendance").
func FilterByPrefix(perms []string, prefix string) []string {
	var matches []string
	for _, p := range perms {
		if strings.HasPrefix(p, prefix+":") || p == prefix {
			matches = append(matches, p)
		}
	}
	return matches
}

// MergePermissions merges multiple permission sets, removing duplicates.
// Used to combine role permissions with a user's permission overrides.
func MergePermissions(sets ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, set := range sets {
		for _, p := range set {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result
}

// RemovePermissions removes specific permissions from a set.
// Used to apply UserPermission revocations over the role-derived set.
func RemovePermissions(perms []string, toRemove []string) []string {
	removeSet := make(map[string]bool)
	for _, p := range toRemove {
		removeSet[p] = true
	}

	var result []string
	for _, p := range perms {
		if !removeSet[p] {
			result = append(result, p)
		}
	}

	return result
}

// CommonPermissions enumerates the permission catalogue recognised by the
// resolver for validation and admin-UI autocomplete.
var CommonPermissions = []string{
	// Attendance permissions
	"attendance:punch",
	"attendance:view",
	"attendance:view_own",
	"attendance:correct",
	"attendance:*",

	// Employee/roster permissions
	"employee:read",
	"employee:write",
	"employee:delete",
	"employee:*",

	// City/zone scope management
	"city:view",
	"city:manage",
	"zone:view",
	"zone:manage",
	"ward:manage",

	// Reports permissions
	"report:view",
	"report:generate",
	"report:export",
	"report:*",

	// User/role administration
	"user:read",
	"user:write",
	"user:delete",
	"role:assign",
	"role:manage",
	"user:*",

	// Profile permissions (self-management)
	"profile:read",
	"profile:update",
	"profile:*",

	// Admin permissions
	"admin:settings",
	"admin:audit_read",
	"admin:*",

	// Full access
	"*",
}

// IsValidPermission checks if a permission string is in the known list.
// Allows wildcards and custom permissions not in the standard list.
func IsValidPermission(perm string) bool {
	// Allow wildcard
	if perm == "*" {
		return true
	}

	// Check against known permissions
	for _, p := range CommonPermissions {
		if p == perm {
			return true
		}
	}

	// Allow any permission that follows the pattern module:action
	parts := strings.Split(perm, ":")
	return len(parts) >= 2
}
