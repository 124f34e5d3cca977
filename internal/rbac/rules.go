package rbac

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"bank:view",
		"practice:*",
		"exam:create",
		"exam:view",
		"exam:answer",
		"exam:submit",
		"exam:delete_own",
		"user:change_password",
	},
	RoleAdmin: {
		"*", // everything
	},
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
