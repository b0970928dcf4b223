package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/bunx"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/uptrace/bun"
)

// BunRoleRepository implements RoleRepository using Bun ORM
type BunRoleRepository struct {
	db *bun.DB
}

// NewBunRoleRepository creates a new Bun-based role repository
func NewBunRoleRepository(db *bun.DB) *BunRoleRepository {
	return &BunRoleRepository{db: db}
}

// Create inserts a new role
func (r *BunRoleRepository) Create(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = bunx.NewUUIDv7()
	}
	role.CreatedAt = time.Now().UTC()
	if _, err := r.db.NewInsert().Model(role).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create role %s: %w", role.Name, ErrConflict)
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// GetByID retrieves a role by id
func (r *BunRoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role := new(models.Role)
	if err := r.db.NewSelect().Model(role).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "get role %s", id)
	}
	return role, nil
}

// GetByName retrieves a role by its unique name
func (r *BunRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	role := new(models.Role)
	if err := r.db.NewSelect().Model(role).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "get role by name %s", name)
	}
	return role, nil
}

// List returns all roles ordered by name
func (r *BunRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.NewSelect().Model(&roles).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// PermissionsForRole flattens every join row for the role.
func (r *BunRoleRepository) PermissionsForRole(ctx context.Context, roleID string) ([]string, error) {
	names := make([]string, 0)
	err := r.db.NewSelect().
		TableExpr("role_permissions AS rp").
		Join("JOIN permissions AS p ON p.id = rp.permission_id").
		ColumnExpr("DISTINCT p.name").
		Where("rp.role_id = ?", roleID).
		OrderExpr("p.name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("list permissions for role %s: %w", roleID, err)
	}
	return names, nil
}

// CreatePermission inserts a permission into the catalog
func (r *BunRoleRepository) CreatePermission(ctx context.Context, permission *models.Permission) error {
	if permission.ID == "" {
		permission.ID = bunx.NewUUIDv7()
	}
	if _, err := r.db.NewInsert().Model(permission).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create permission %s: %w", permission.Name, ErrConflict)
		}
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

// ListPermissionNames returns the full permission catalog
func (r *BunRoleRepository) ListPermissionNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	err := r.db.NewSelect().
		Model((*models.Permission)(nil)).
		Column("name").
		Order("name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return names, nil
}

// GrantPermission links a catalog permission to a role. Granting twice is a no-op.
func (r *BunRoleRepository) GrantPermission(ctx context.Context, roleID, permissionName string) error {
	perm := new(models.Permission)
	if err := r.db.NewSelect().Model(perm).Where("name = ?", permissionName).Scan(ctx); err != nil {
		return notFoundOr(err, "get permission %s", permissionName)
	}

	grant := &models.RolePermission{RoleID: roleID, PermissionID: perm.ID}
	if _, err := r.db.NewInsert().Model(grant).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("grant %s to role %s: %w", permissionName, roleID, err)
	}
	return nil
}
