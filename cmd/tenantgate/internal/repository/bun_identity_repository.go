package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/bunx"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/uptrace/bun"
)

// BunIdentityRepository implements IdentityRepository using Bun ORM
type BunIdentityRepository struct {
	db *bun.DB
}

// NewBunIdentityRepository creates a new Bun-based identity repository
func NewBunIdentityRepository(db *bun.DB) *BunIdentityRepository {
	return &BunIdentityRepository{db: db}
}

// Create inserts a new identity, assigning a UUIDv7 id when none is set.
// A duplicate external subject id wraps ErrConflict.
func (r *BunIdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	if identity.ID == "" {
		identity.ID = bunx.NewUUIDv7()
	}
	if identity.Status == "" {
		identity.Status = models.StatusActive
	}
	now := time.Now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(identity).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create identity %s: %w", identity.ExternalSubjectID, ErrConflict)
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (r *BunIdentityRepository) getBy(ctx context.Context, column, value string) (*models.Identity, error) {
	identity := new(models.Identity)
	err := r.db.NewSelect().
		Model(identity).
		Relation("Role").
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "get identity by %s %q", column, value)
	}
	return identity, nil
}

// GetByID retrieves an identity by internal id
func (r *BunIdentityRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	return r.getBy(ctx, "id", id)
}

// GetByExternalSubjectID retrieves an identity by token subject
func (r *BunIdentityRepository) GetByExternalSubjectID(ctx context.Context, subject string) (*models.Identity, error) {
	return r.getBy(ctx, "external_subject_id", subject)
}

// GetByEmail retrieves the oldest identity with the given email
func (r *BunIdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	identity := new(models.Identity)
	err := r.db.NewSelect().
		Model(identity).
		Relation("Role").
		Where("?TableAlias.email = ?", email).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "get identity by email %q", email)
	}
	return identity, nil
}

// Update writes profile, role, tenant and status changes
func (r *BunIdentityRepository) Update(ctx context.Context, identity *models.Identity) error {
	identity.UpdatedAt = time.Now().UTC()
	result, err := r.db.NewUpdate().
		Model(identity).
		Column("email", "first_name", "last_name", "tenant_id", "role_id", "status", "updated_at", "deleted_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("update identity %s: %w", identity.ID, ErrNotFound)
	}
	return nil
}
