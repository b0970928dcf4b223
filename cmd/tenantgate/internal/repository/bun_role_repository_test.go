package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/migrations"
)

func TestBunRoleRepository_PermissionsForRole(t *testing.T) {
	ctx := context.Background()
	repo := NewBunRoleRepository(setupTestDB(t))

	member, err := repo.GetByName(ctx, migrations.RoleMember)
	require.NoError(t, err)

	perms, err := repo.PermissionsForRole(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Documents:viewArticles", "Subscriptions:view", "Taxonomies:view"}, perms)

	admin, err := repo.GetByName(ctx, auth.RoleCustomerAdministrator)
	require.NoError(t, err)
	perms, err = repo.PermissionsForRole(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, perms, len(migrations.PermissionCatalog))
}

func TestBunRoleRepository_PermissionsBeyondFirstJoinRow(t *testing.T) {
	ctx := context.Background()
	repo := NewBunRoleRepository(setupTestDB(t))

	role := &models.Role{Name: "Editor"}
	require.NoError(t, repo.Create(ctx, role))
	for _, name := range []string{"Documents:viewArticles", "Documents:updateArticles", "Taxonomies:manage"} {
		require.NoError(t, repo.GrantPermission(ctx, role.ID, name))
	}
	// granting again does not add a row
	require.NoError(t, repo.GrantPermission(ctx, role.ID, "Taxonomies:manage"))

	perms, err := repo.PermissionsForRole(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Documents:updateArticles", "Documents:viewArticles", "Taxonomies:manage"}, perms)
}

func TestBunRoleRepository_UnknownPermission(t *testing.T) {
	ctx := context.Background()
	repo := NewBunRoleRepository(setupTestDB(t))

	role := &models.Role{Name: "Auditor"}
	require.NoError(t, repo.Create(ctx, role))
	err := repo.GrantPermission(ctx, role.ID, "Billing:view")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunRoleRepository_Catalog(t *testing.T) {
	ctx := context.Background()
	repo := NewBunRoleRepository(setupTestDB(t))

	require.NoError(t, repo.CreatePermission(ctx, &models.Permission{Name: "Reports:export"}))
	assert.ErrorIs(t, repo.CreatePermission(ctx, &models.Permission{Name: "Reports:export"}), ErrConflict)

	names, err := repo.ListPermissionNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "Reports:export")
	assert.Len(t, names, len(migrations.PermissionCatalog)+1)

	roles, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 4)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Create(ctx, &models.Role{Name: auth.RoleCustomerSuccess}), ErrConflict)
}
