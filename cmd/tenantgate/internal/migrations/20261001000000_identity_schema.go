package migrations

import (
	"context"
	"fmt"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000000, down_20261001000000)
}

type tableSpec struct {
	name        string
	model       any
	foreignKeys []string
}

// Creation order respects foreign keys; teardown runs in reverse.
var identityTables = []tableSpec{
	{name: "tenants", model: (*models.Tenant)(nil)},
	{name: "roles", model: (*models.Role)(nil)},
	{name: "permissions", model: (*models.Permission)(nil)},
	{name: "role_permissions", model: (*models.RolePermission)(nil), foreignKeys: []string{
		`("role_id") REFERENCES "roles" ("id") ON DELETE CASCADE`,
		`("permission_id") REFERENCES "permissions" ("id") ON DELETE CASCADE`,
	}},
	{name: "identities", model: (*models.Identity)(nil), foreignKeys: []string{
		`("role_id") REFERENCES "roles" ("id") ON DELETE SET NULL`,
		`("tenant_id") REFERENCES "tenants" ("id") ON DELETE SET NULL`,
	}},
	{name: "tenant_assignments", model: (*models.TenantAssignment)(nil), foreignKeys: []string{
		`("identity_id") REFERENCES "identities" ("id") ON DELETE CASCADE`,
		`("tenant_id") REFERENCES "tenants" ("id") ON DELETE CASCADE`,
	}},
	{name: "identity_claims", model: (*models.IdentityClaims)(nil), foreignKeys: []string{
		`("identity_id") REFERENCES "identities" ("id") ON DELETE CASCADE`,
	}},
}

// up_20261001000000 creates the identity, role and claims schema
func up_20261001000000(ctx context.Context, db *bun.DB) error {
	for _, spec := range identityTables {
		fmt.Printf(" [up] creating %s table...", spec.name)
		q := db.NewCreateTable().Model(spec.model).IfNotExists()
		for _, fk := range spec.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", spec.name, err)
		}
		fmt.Println(" OK")
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
		unique  bool
	}{
		{(*models.Identity)(nil), "idx_identities_email", []string{"email"}, false},
		{(*models.Identity)(nil), "idx_identities_tenant_id", []string{"tenant_id"}, false},
		{(*models.TenantAssignment)(nil), "idx_tenant_assignments_identity_tenant", []string{"identity_id", "tenant_id"}, true},
	}
	for _, idx := range indexes {
		q := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}

// down_20261001000000 drops the identity schema
func down_20261001000000(ctx context.Context, db *bun.DB) error {
	for i := len(identityTables) - 1; i >= 0; i-- {
		spec := identityTables[i]
		fmt.Printf(" [down] dropping %s table...", spec.name)
		q := db.NewDropTable().Model(spec.model).IfExists()
		if IsPostgreSQL(db) {
			q = q.Cascade()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", spec.name, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
