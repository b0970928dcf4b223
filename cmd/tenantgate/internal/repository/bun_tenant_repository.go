package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/bunx"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/uptrace/bun"
)

// BunTenantRepository implements TenantRepository using Bun ORM
type BunTenantRepository struct {
	db *bun.DB
}

// NewBunTenantRepository creates a new Bun-based tenant repository
func NewBunTenantRepository(db *bun.DB) *BunTenantRepository {
	return &BunTenantRepository{db: db}
}

// Create inserts a new tenant
func (r *BunTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = bunx.NewUUIDv7()
	}
	tenant.CreatedAt = time.Now().UTC()
	if _, err := r.db.NewInsert().Model(tenant).Exec(ctx); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by id
func (r *BunTenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	tenant := new(models.Tenant)
	if err := r.db.NewSelect().Model(tenant).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "get tenant %s", id)
	}
	return tenant, nil
}

// Assign records explicit access of an identity to a tenant. Idempotent.
func (r *BunTenantRepository) Assign(ctx context.Context, identityID, tenantID string) error {
	assignment := &models.TenantAssignment{
		ID:         bunx.NewUUIDv7(),
		IdentityID: identityID,
		TenantID:   tenantID,
		AssignedAt: time.Now().UTC(),
	}
	_, err := r.db.NewInsert().
		Model(assignment).
		On("CONFLICT (identity_id, tenant_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("assign identity %s to tenant %s: %w", identityID, tenantID, err)
	}
	return nil
}

// IsAssigned reports whether an explicit assignment exists
func (r *BunTenantRepository) IsAssigned(ctx context.Context, identityID, tenantID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.TenantAssignment)(nil)).
		Where("identity_id = ?", identityID).
		Where("tenant_id = ?", tenantID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check tenant assignment: %w", err)
	}
	return exists, nil
}

// ListAssignedTenantIDs returns the tenants explicitly assigned to an identity
func (r *BunTenantRepository) ListAssignedTenantIDs(ctx context.Context, identityID string) ([]string, error) {
	ids := make([]string, 0)
	err := r.db.NewSelect().
		Model((*models.TenantAssignment)(nil)).
		Column("tenant_id").
		Where("identity_id = ?", identityID).
		Order("tenant_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list tenant assignments: %w", err)
	}
	return ids, nil
}
