package auth

const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RolePlantAdmin = "PLANT_ADMIN"
	RoleHRAdmin    = "HR_ADMIN"
	RoleModerator  = "MODERATOR"
	RoleApprover   = "APPROVER"
	RoleEmployee   = "EMPLOYEE"
)

var AllRoles = []string{
	RoleSuperAdmin,
	RolePlantAdmin,
	RoleHRAdmin,
	RoleModerator,
	RoleApprover,
	RoleEmployee,
}

// IsAdminRole reports whether the role may archive approved records and
// manage directory data.
func IsAdminRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RolePlantAdmin, RoleHRAdmin:
		return true
	}
	return false
}
