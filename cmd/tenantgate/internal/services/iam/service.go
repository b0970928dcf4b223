package iam

import (
	"context"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
)

// Service provides the authorization pipeline and the auth context operations.
//
// Request path, in order:
//   - Authenticate: bearer token -> verified subject -> directory identity
//   - Impersonate: optional delegation to another identity
//   - Authorize: route policy check against the effective identity
//
// Out of band:
//   - RefreshContext / ClearContext: the only writers of persisted claims
//   - ValidatePolicies: startup check of declared route permissions
type Service interface {
	// Authenticate verifies the Authorization header value and resolves the
	// caller. Missing, malformed, unsupported or invalid tokens and
	// deleted or non-active accounts fail with an Unauthenticated error.
	Authenticate(ctx context.Context, authorization string) (auth.RequestAuthState, error)

	// Impersonate applies the delegation target from the impersonation
	// header. An empty targetID returns state unchanged.
	Impersonate(ctx context.Context, state auth.RequestAuthState, targetID string) (auth.RequestAuthState, error)

	// Authorize returns nil when the effective identity satisfies policy.
	// Denials are Forbidden errors and are published as audit events.
	Authorize(ctx context.Context, state auth.RequestAuthState, policy auth.RoutePolicy) error

	// RefreshContext validates and persists the caller's tenant scope and
	// impersonation target. It never mints tokens.
	RefreshContext(ctx context.Context, caller *models.Identity, req RefreshRequest) (*RefreshResult, error)

	// ClearContext empties the caller's own persisted claims.
	ClearContext(ctx context.Context, caller *models.Identity) (*models.IdentityClaims, error)

	// GetClaims reads persisted claims, returning an empty record when none exist.
	GetClaims(ctx context.Context, identityID string) (*models.IdentityClaims, error)

	// ValidatePolicies fails with a Configuration error when a policy names
	// a permission missing from the catalog.
	ValidatePolicies(ctx context.Context, policies []auth.RoutePolicy) error
}
