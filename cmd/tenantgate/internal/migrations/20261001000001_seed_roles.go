package migrations

import (
	"context"
	"fmt"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/bunx"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000001, down_20261001000001)
}

// RoleMember is the default role for regular tenant users.
const RoleMember = "Member"

// PermissionCatalog is the seeded set of permission names. Route policies may
// only reference names present in the permissions table.
var PermissionCatalog = []models.Permission{
	{Name: "Documents:viewArticles", Description: "Read articles"},
	{Name: "Documents:createArticles", Description: "Create articles"},
	{Name: "Documents:updateArticles", Description: "Edit articles"},
	{Name: "Documents:deleteArticles", Description: "Delete articles"},
	{Name: "Documents:publishArticles", Description: "Publish articles"},
	{Name: "Users:view", Description: "List and read users"},
	{Name: "Users:create", Description: "Create users"},
	{Name: "Users:update", Description: "Edit users"},
	{Name: "Users:delete", Description: "Delete users"},
	{Name: "Users:invite", Description: "Invite users"},
	{Name: "Notifications:viewTemplates", Description: "Read notification templates"},
	{Name: "Notifications:manageTemplates", Description: "Edit notification templates"},
	{Name: "Subscriptions:view", Description: "Read subscriptions"},
	{Name: "Subscriptions:manage", Description: "Change subscriptions"},
	{Name: "Taxonomies:view", Description: "Read taxonomies"},
	{Name: "Taxonomies:manage", Description: "Edit taxonomies"},
}

type seedRole struct {
	role        models.Role
	permissions []string
}

// SystemAdministrator and CustomerSuccess are resolved by name and flag, so
// they carry no permission rows.
var seedRoles = []seedRole{
	{role: models.Role{Name: auth.RoleSystemAdministrator, Description: "Platform administrator", IsSystemRole: true}},
	{role: models.Role{Name: auth.RoleCustomerSuccess, Description: "Platform support", IsSystemRole: true}},
	{
		role: models.Role{Name: auth.RoleCustomerAdministrator, Description: "Tenant administrator"},
		permissions: []string{
			"Documents:viewArticles", "Documents:createArticles", "Documents:updateArticles",
			"Documents:deleteArticles", "Documents:publishArticles",
			"Users:view", "Users:create", "Users:update", "Users:delete", "Users:invite",
			"Notifications:viewTemplates", "Notifications:manageTemplates",
			"Subscriptions:view", "Subscriptions:manage",
			"Taxonomies:view", "Taxonomies:manage",
		},
	},
	{
		role:        models.Role{Name: RoleMember, Description: "Tenant member"},
		permissions: []string{"Documents:viewArticles", "Taxonomies:view", "Subscriptions:view"},
	},
}

// up_20261001000001 seeds the system roles and permission catalog
func up_20261001000001(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		fmt.Print(" [up] seeding permissions...")
		for _, p := range PermissionCatalog {
			perm := p
			perm.ID = bunx.NewUUIDv7()
			if _, err := tx.NewInsert().Model(&perm).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("seed permission %s: %w", p.Name, err)
			}
		}
		fmt.Println(" OK")

		fmt.Print(" [up] seeding roles...")
		for _, sr := range seedRoles {
			role := sr.role
			role.ID = bunx.NewUUIDv7()
			if _, err := tx.NewInsert().Model(&role).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("seed role %s: %w", role.Name, err)
			}
			if len(sr.permissions) == 0 {
				continue
			}

			var roleID string
			if err := tx.NewSelect().Model((*models.Role)(nil)).Column("id").Where("name = ?", role.Name).Scan(ctx, &roleID); err != nil {
				return fmt.Errorf("load role %s: %w", role.Name, err)
			}

			var permIDs []string
			if err := tx.NewSelect().Model((*models.Permission)(nil)).Column("id").Where("name IN (?)", bun.In(sr.permissions)).Scan(ctx, &permIDs); err != nil {
				return fmt.Errorf("load permissions for %s: %w", role.Name, err)
			}

			grants := make([]models.RolePermission, 0, len(permIDs))
			for _, id := range permIDs {
				grants = append(grants, models.RolePermission{RoleID: roleID, PermissionID: id})
			}
			if _, err := tx.NewInsert().Model(&grants).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("grant permissions to %s: %w", role.Name, err)
			}
		}
		fmt.Println(" OK")
		return nil
	})
}

// down_20261001000001 removes seeded roles and permissions
func down_20261001000001(ctx context.Context, db *bun.DB) error {
	roleNames := make([]string, 0, len(seedRoles))
	for _, sr := range seedRoles {
		roleNames = append(roleNames, sr.role.Name)
	}
	permNames := make([]string, 0, len(PermissionCatalog))
	for _, p := range PermissionCatalog {
		permNames = append(permNames, p.Name)
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.Role)(nil)).Where("name IN (?)", bun.In(roleNames)).Exec(ctx); err != nil {
			return fmt.Errorf("delete seeded roles: %w", err)
		}
		if _, err := tx.NewDelete().Model((*models.Permission)(nil)).Where("name IN (?)", bun.In(permNames)).Exec(ctx); err != nil {
			return fmt.Errorf("delete seeded permissions: %w", err)
		}
		return nil
	})
}
