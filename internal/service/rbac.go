package service

import "github.com/avmironov/project-auth/internal/model"

// Authorize decides whether a principal's role grants access to an
// operation requiring one of the given role types. A principal with
// no role is always denied when any role is required. The check is
// pure and synchronous; the role was resolved during request
// authentication.
func Authorize(role *model.Role, required ...model.RoleType) bool {
	if len(required) == 0 {
		return true
	}
	if role == nil {
		return false
	}
	for _, want := range required {
		if role.Type == want {
			return true
		}
	}
	return false
}

// HasPermission reports whether the role carries a specific
// permission string. Complementary to the type check for callers that
// gate on fine-grained permissions rather than role categories.
func HasPermission(role *model.Role, perm string) bool {
	if role == nil {
		return false
	}
	for _, p := range role.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
