package models

import "slices"

type Permission string

const (
	PermissionJournalWrite   Permission = "journal:write"
	PermissionJournalPost    Permission = "journal:post"
	PermissionAccountsWrite  Permission = "accounts:write"
	PermissionSalesWrite     Permission = "sales:write"
	PermissionPurchasesWrite Permission = "purchases:write"
	PermissionUsersWrite     Permission = "users:write"
	PermissionCompanyWrite   Permission = "company:write"
	PermissionReportsRead    Permission = "reports:read"
)

var allPermissions = []Permission{
	PermissionJournalWrite,
	PermissionJournalPost,
	PermissionAccountsWrite,
	PermissionSalesWrite,
	PermissionPurchasesWrite,
	PermissionUsersWrite,
	PermissionCompanyWrite,
	PermissionReportsRead,
}

var rolePermissions = map[UserRole][]Permission{
	UserRoleSuperAdmin: allPermissions,
	UserRoleAdmin:      allPermissions,
	UserRoleAccountant: {
		PermissionJournalWrite,
		PermissionJournalPost,
		PermissionAccountsWrite,
		PermissionSalesWrite,
		PermissionPurchasesWrite,
		PermissionReportsRead,
	},
	UserRoleAPManager: {PermissionPurchasesWrite, PermissionReportsRead},
	UserRoleARManager: {PermissionSalesWrite, PermissionReportsRead},
	UserRoleViewer:    {PermissionReportsRead},
}

// PermissionsFor returns the permissions granted to role (none for unknown roles).
func PermissionsFor(role UserRole) []Permission {
	return rolePermissions[role]
}

func HasPermission(role UserRole, p Permission) bool {
	return slices.Contains(rolePermissions[role], p)
}
