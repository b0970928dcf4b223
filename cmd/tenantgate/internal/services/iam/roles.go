package iam

import (
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
)

func isSystemAdministrator(i *models.Identity) bool {
	return i.HasSystemRole(auth.RoleSystemAdministrator)
}

func isCustomerSuccess(i *models.Identity) bool {
	return i.HasSystemRole(auth.RoleCustomerSuccess)
}

// canImpersonate is also the value persisted as impersonationAllowed.
func canImpersonate(i *models.Identity) bool {
	return isSystemAdministrator(i) || isCustomerSuccess(i)
}
