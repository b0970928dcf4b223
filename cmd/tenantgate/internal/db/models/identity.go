package models

import (
	"time"

	"github.com/uptrace/bun"
)

// IdentityStatus is the lifecycle state of an identity.
type IdentityStatus string

const (
	StatusActive    IdentityStatus = "ACTIVE"
	StatusInactive  IdentityStatus = "INACTIVE"
	StatusSuspended IdentityStatus = "SUSPENDED"
)

// Identity is a human principal known to the directory.
// ExternalSubjectID stores the subject claim of the token that first introduced it.
// Identities are soft-deleted only; DeletedAt is a rejection condition, not a filter.
type Identity struct {
	bun.BaseModel `bun:"table:identities,alias:i"`

	ID                string         `bun:"id,pk"`
	ExternalSubjectID string         `bun:"external_subject_id,notnull,unique"`
	Email             string         `bun:"email,notnull"`
	FirstName         string         `bun:"first_name"`
	LastName          string         `bun:"last_name"`
	TenantID          *string        `bun:"tenant_id"`
	RoleID            *string        `bun:"role_id"`
	Status            IdentityStatus `bun:"status,notnull,default:'ACTIVE'"`
	CreatedAt         time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
	DeletedAt         *time.Time     `bun:"deleted_at"`

	Role *Role `bun:"rel:belongs-to,join:role_id=id"`
}

// IsDeleted reports whether the identity has been soft-deleted.
func (i *Identity) IsDeleted() bool {
	return i != nil && i.DeletedAt != nil
}

// IsActive reports whether the identity may authenticate.
func (i *Identity) IsActive() bool {
	return i != nil && i.Status == StatusActive
}

// HasSystemRole reports whether the identity holds the named system role.
// A non-system role that happens to share the name does not count.
func (i *Identity) HasSystemRole(name string) bool {
	if i == nil || i.Role == nil {
		return false
	}
	return i.Role.IsSystemRole && i.Role.Name == name
}

// RoleName returns the loaded role name, or "" when no role is assigned.
func (i *Identity) RoleName() string {
	if i == nil || i.Role == nil {
		return ""
	}
	return i.Role.Name
}

// Tenant returns the tenant id, or "" when the identity is not tenant-scoped.
func (i *Identity) Tenant() string {
	if i == nil || i.TenantID == nil {
		return ""
	}
	return *i.TenantID
}

// SameTenant reports whether both identities belong to the same tenant.
// Identities without a tenant never match, including each other.
func (i *Identity) SameTenant(other *Identity) bool {
	if i.Tenant() == "" || other.Tenant() == "" {
		return false
	}
	return i.Tenant() == other.Tenant()
}

// DisplayName joins the first and last name, falling back to the email.
func (i *Identity) DisplayName() string {
	name := i.FirstName
	if i.LastName != "" {
		if name != "" {
			name += " "
		}
		name += i.LastName
	}
	if name == "" {
		return i.Email
	}
	return name
}
