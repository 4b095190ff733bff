// Package permission implements the policy evaluator (C6) applied to any
// tool/skill catalog surface and before any invocation.
//
// Grounded on original_source/backend/app/core/permissions.py: a pure
// function over (caller, object) with a fixed rule order, no I/O, no clock.
package permission

import "github.com/agentcore/orchestrator/pkg/config"

// User is consumed only by C6.
type User struct {
	ID          string
	Department  string
	Roles       []string
	IsSuperuser bool
	Anonymous   bool
}

// HasRole reports whether u holds role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Object is anything visibility/ownership rules can be evaluated against:
// a Tool or a Skill catalog entry.
type Object interface {
	GetVisibility() config.Visibility
	GetCreatedBy() string
	GetAllowedDepartments() []string
	GetAllowedRoles() []string
}

// May evaluates the fixed rule order from §4.6. It is a pure function of its
// arguments: no I/O, no clock.
func May(user User, obj Object) bool {
	if obj.GetVisibility() == config.VisibilityPublic {
		return true
	}
	if user.Anonymous {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	if obj.GetVisibility() == config.VisibilityPrivate {
		return obj.GetCreatedBy() == user.ID
	}
	if obj.GetVisibility() == config.VisibilityInternal {
		if departmentMatches(user.Department, obj.GetAllowedDepartments()) {
			return true
		}
		if rolesIntersect(user.Roles, obj.GetAllowedRoles()) {
			return true
		}
		return false
	}
	return false
}

func departmentMatches(department string, allowed []string) bool {
	if department == "" {
		return false
	}
	for _, d := range allowed {
		if d == department {
			return true
		}
	}
	return false
}

func rolesIntersect(userRoles, allowedRoles []string) bool {
	if len(userRoles) == 0 || len(allowedRoles) == 0 {
		return false
	}
	allowed := make(map[string]bool, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = true
	}
	for _, r := range userRoles {
		if allowed[r] {
			return true
		}
	}
	return false
}

// FilterTools returns the subset of tools that user may access, preserving order.
func FilterTools[T Object](user User, objs []T) []T {
	out := make([]T, 0, len(objs))
	for _, o := range objs {
		if May(user, o) {
			out = append(out, o)
		}
	}
	return out
}
