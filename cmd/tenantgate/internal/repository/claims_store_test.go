package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
)

// exerciseClaimsStore runs the shared ClaimsStore contract against store.
func exerciseClaimsStore(t *testing.T, store ClaimsStore, identityID, tenantID string) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Get(ctx, identityID)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, identityID, empty.IdentityID)

	validatedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Replace(ctx, &models.IdentityClaims{
		IdentityID:           identityID,
		TenantID:             &tenantID,
		TenantIDs:            models.StringList{tenantID},
		ImpersonationAllowed: true,
		ValidatedAt:          &validatedAt,
	}))

	got, err := store.Get(ctx, identityID)
	require.NoError(t, err)
	require.NotNil(t, got.TenantID)
	assert.Equal(t, tenantID, *got.TenantID)
	assert.Equal(t, models.StringList{tenantID}, got.TenantIDs)
	assert.True(t, got.ImpersonationAllowed)
	require.NotNil(t, got.ValidatedAt)
	assert.True(t, validatedAt.Equal(*got.ValidatedAt))

	// replace overwrites every field
	require.NoError(t, store.Replace(ctx, models.EmptyClaims(identityID)))
	got, err = store.Get(ctx, identityID)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestBunClaimsStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	tenant := &models.Tenant{Name: "Acme"}
	require.NoError(t, NewBunTenantRepository(db).Create(ctx, tenant))
	identity := &models.Identity{ExternalSubjectID: "claims-sub", Email: "claims@example.com"}
	require.NoError(t, NewBunIdentityRepository(db).Create(ctx, identity))

	exerciseClaimsStore(t, NewBunClaimsStore(db), identity.ID, tenant.ID)
}

func TestRedisClaimsStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisClaimsStore(client, "")
	exerciseClaimsStore(t, store, "identity-1", "tenant-1")

	assert.True(t, mr.Exists("tenantgate:claims:identity-1"))
}

func TestNewRedisClient_RequiresAddr(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "", "", 0)
	assert.Error(t, err)
}

func TestNewRedisClient_FailsWhenServerUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), addr, "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
