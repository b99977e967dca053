package core

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	// AuthorRoles may create, update and list questions.
	AuthorRoles = append(append([]string{}, AdminRoles...), TeacherRoles...)
)

func getAllRoles() []string {
	all := make([]string, 0, 5)
	all = append(all, AdminRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	return all
}

// IsValidRole reports whether role is one of AllRoles.
func IsValidRole(role string) bool {
	return HasAnyRole(AllRoles, role)
}

// HasAnyRole reports whether roles contains any of want.
func HasAnyRole(roles []string, want ...string) bool {
	for _, w := range want {
		for _, r := range roles {
			if r == w {
				return true
			}
		}
	}
	return false
}
