package iam

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/repository"
)

// IdentityResolver maps a verified subject to a directory identity,
// provisioning one on first sight.
type IdentityResolver struct {
	identities repository.IdentityRepository
	format     auth.IdentifierFormat
	logger     *slog.Logger
}

// NewIdentityResolver creates a resolver backed by the identity directory.
// Provisioned identities get ids in format, so they can later be named as
// impersonation targets.
func NewIdentityResolver(identities repository.IdentityRepository, format auth.IdentifierFormat, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{identities: identities, format: format, logger: logger}
}

// Resolve returns the identity for the token's subject with its role loaded.
// Deleted and non-active identities are rejected as unauthenticated.
func (r *IdentityResolver) Resolve(ctx context.Context, token *VerifiedToken) (*models.Identity, error) {
	identity, err := r.identities.GetByExternalSubjectID(ctx, token.Subject)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		identity, err = r.provision(ctx, token)
		if err != nil {
			return nil, err
		}
	default:
		return nil, auth.Internal("identity lookup failed", err)
	}

	if identity.IsDeleted() {
		return nil, auth.Unauthenticated("account deleted", auth.ErrAccountDeleted)
	}
	if !identity.IsActive() {
		return nil, auth.Unauthenticated("account not active", auth.ErrAccountNotActive)
	}
	return identity, nil
}

func (r *IdentityResolver) provision(ctx context.Context, token *VerifiedToken) (*models.Identity, error) {
	identity := &models.Identity{
		ID:                r.format.NewID(),
		ExternalSubjectID: token.Subject,
		Email:             token.Profile.Email,
		FirstName:         token.Profile.FirstName,
		LastName:          token.Profile.LastName,
		Status:            models.StatusActive,
	}

	if err := r.identities.Create(ctx, identity); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, auth.Internal("identity provisioning failed", err)
		}
		// Lost a first-sight race: the winner's row is authoritative.
		existing, getErr := r.identities.GetByExternalSubjectID(ctx, token.Subject)
		if getErr != nil {
			return nil, auth.Internal("identity lookup after conflict failed", getErr)
		}
		return existing, nil
	}

	r.logger.InfoContext(ctx, "provisioned identity on first sight",
		"identity_id", identity.ID,
		"provider", token.Provider.String(),
	)
	return identity, nil
}
