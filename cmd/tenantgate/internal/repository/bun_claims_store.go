package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/uptrace/bun"
)

// BunClaimsStore implements ClaimsStore on the identity_claims table
type BunClaimsStore struct {
	db *bun.DB
}

// NewBunClaimsStore creates a new Bun-based claims store
func NewBunClaimsStore(db *bun.DB) *BunClaimsStore {
	return &BunClaimsStore{db: db}
}

// Get returns the stored claims or an empty record
func (s *BunClaimsStore) Get(ctx context.Context, identityID string) (*models.IdentityClaims, error) {
	claims := new(models.IdentityClaims)
	err := s.db.NewSelect().Model(claims).Where("identity_id = ?", identityID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EmptyClaims(identityID), nil
		}
		return nil, fmt.Errorf("get claims for %s: %w", identityID, err)
	}
	return claims, nil
}

// Replace upserts the full record in a single statement
func (s *BunClaimsStore) Replace(ctx context.Context, claims *models.IdentityClaims) error {
	if claims.TenantIDs == nil {
		claims.TenantIDs = models.StringList{}
	}
	claims.UpdatedAt = time.Now().UTC()

	_, err := s.db.NewInsert().
		Model(claims).
		On("CONFLICT (identity_id) DO UPDATE").
		Set("tenant_id = EXCLUDED.tenant_id").
		Set("tenant_ids = EXCLUDED.tenant_ids").
		Set("impersonated_identity_id = EXCLUDED.impersonated_identity_id").
		Set("impersonation_allowed = EXCLUDED.impersonation_allowed").
		Set("validated_at = EXCLUDED.validated_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("replace claims for %s: %w", claims.IdentityID, err)
	}
	return nil
}
