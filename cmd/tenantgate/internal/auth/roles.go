package auth

// Distinguished role names.
const (
	RoleSystemAdministrator   = "SystemAdministrator"
	RoleCustomerSuccess       = "CustomerSuccess"
	RoleCustomerAdministrator = "CustomerAdministrator"
)
