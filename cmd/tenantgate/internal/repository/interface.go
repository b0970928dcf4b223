package repository

import (
	"context"
	"errors"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is wrapped when a unique constraint rejects a write.
var ErrConflict = errors.New("conflict")

// IdentityRepository is the user directory. Lookups load the identity's role.
type IdentityRepository interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByID(ctx context.Context, id string) (*models.Identity, error)
	GetByExternalSubjectID(ctx context.Context, subject string) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	Update(ctx context.Context, identity *models.Identity) error
}

// RoleRepository is the role directory.
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)

	// PermissionsForRole returns every permission name granted to the role
	// across all join rows, deduplicated and sorted.
	PermissionsForRole(ctx context.Context, roleID string) ([]string, error)

	CreatePermission(ctx context.Context, permission *models.Permission) error
	ListPermissionNames(ctx context.Context) ([]string, error)
	GrantPermission(ctx context.Context, roleID, permissionName string) error
}

// TenantRepository manages tenants and explicit support assignments.
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	Assign(ctx context.Context, identityID, tenantID string) error
	IsAssigned(ctx context.Context, identityID, tenantID string) (bool, error)
	ListAssignedTenantIDs(ctx context.Context, identityID string) ([]string, error)
}

// ClaimsStore persists per-identity token context.
type ClaimsStore interface {
	// Get returns the stored claims, or an empty record when none exist.
	Get(ctx context.Context, identityID string) (*models.IdentityClaims, error)
	// Replace atomically overwrites the whole record.
	Replace(ctx context.Context, claims *models.IdentityClaims) error
}
