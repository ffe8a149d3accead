package rbac

import (
	"strings"

	"escashop/backend/internal/models"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleSales      Role = "sales"
	RoleCashier    Role = "cashier"
)

// ParseRole canonicalizes a boundary role string. Unknown roles are
// rejected so a typo can never widen permissions.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSales:
		return RoleSales, true
	case RoleCashier:
		return RoleCashier, true
	default:
		return "", false
	}
}

// cashierFlow is the standard forward flow a cashier may drive, keyed by
// current status.
var cashierFlow = map[string][]string{
	models.StatusWaiting:    {models.StatusServing},
	models.StatusServing:    {models.StatusProcessing, models.StatusCompleted},
	models.StatusProcessing: {models.StatusCompleted},
}

// Allowed reports whether role may move a customer from current to target.
// Admin-equivalent roles may perform any transition including forced ones;
// cashiers are limited to the forward flow plus cancellation; sales is
// read-only.
func Allowed(role Role, current, target string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin:
		return true
	case RoleCashier:
		if target == models.StatusCancelled {
			return true
		}
		for _, next := range cashierFlow[current] {
			if next == target {
				return true
			}
		}
		return false
	case RoleSales:
		return false
	default:
		return false
	}
}

// AllowedRoles lists the roles permitted to perform a given transition,
// used to enrich authorization errors.
func AllowedRoles(current, target string) []Role {
	var roles []Role
	for _, role := range []Role{RoleSuperAdmin, RoleAdmin, RoleSales, RoleCashier} {
		if Allowed(role, current, target) {
			roles = append(roles, role)
		}
	}
	return roles
}
