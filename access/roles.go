package access

import "strings"

// Membership roles within a school.
const (
	RoleOwner      = "OWNER"
	RoleAdmin      = "ADMIN"
	RoleInstructor = "INSTRUCTOR"
	RoleTA         = "TA"
	RoleStudent    = "STUDENT"
)

// IsSchoolAdmin reports whether the role can administer the school.
func IsSchoolAdmin(role string) bool {
	switch strings.ToUpper(role) {
	case RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// IsTeacherRole reports whether the role bypasses content gating
// entirely. Teaching staff are never locked out of their own material.
func IsTeacherRole(role string) bool {
	switch strings.ToUpper(role) {
	case RoleOwner, RoleAdmin, RoleInstructor, RoleTA:
		return true
	}
	return false
}
