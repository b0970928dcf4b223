package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Tenant is an isolation boundary (a customer). The owner bypasses role checks
// inside their own tenant.
type Tenant struct {
	bun.BaseModel `bun:"table:tenants,alias:t"`

	ID              string    `bun:"id,pk"`
	Name            string    `bun:"name,notnull"`
	OwnerIdentityID *string   `bun:"owner_identity_id"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// IsOwnedBy reports whether identityID owns the tenant.
func (t *Tenant) IsOwnedBy(identityID string) bool {
	return t != nil && t.OwnerIdentityID != nil && *t.OwnerIdentityID == identityID
}

// TenantAssignment grants a support identity explicit access to a tenant.
type TenantAssignment struct {
	bun.BaseModel `bun:"table:tenant_assignments,alias:ta"`

	ID         string    `bun:"id,pk"`
	IdentityID string    `bun:"identity_id,notnull"`
	TenantID   string    `bun:"tenant_id,notnull"`
	AssignedAt time.Time `bun:"assigned_at,notnull,default:current_timestamp"`
}
