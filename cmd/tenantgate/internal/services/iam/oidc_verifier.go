package iam

import (
	"context"
	"fmt"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
)

type claimsParser interface {
	ParseToken(ctx context.Context, tokenString string) (map[string]any, error)
}

// OIDCTokenVerifier verifies tokens from an external OIDC issuer against its JWKS.
type OIDCTokenVerifier struct {
	parser claimsParser
}

// NewOIDCTokenVerifier builds a verifier for issuer, requiring audience.
// Keys are fetched on first use so startup does not depend on the issuer.
func NewOIDCTokenVerifier(issuer, audience string) (*OIDCTokenVerifier, error) {
	if issuer == "" || audience == "" {
		return nil, auth.ConfigurationError("oidc issuer and audience are required", nil)
	}
	handler, err := oidctoken.New[map[string]any](nil,
		options.WithIssuer(issuer),
		options.WithRequiredAudience(audience),
		options.WithLazyLoadJwks(true),
	)
	if err != nil {
		return nil, auth.ConfigurationError("initialise oidc token handler", err)
	}
	return &OIDCTokenVerifier{parser: handler}, nil
}

// Verify validates the token and extracts the subject.
func (v *OIDCTokenVerifier) Verify(ctx context.Context, token string) (*VerifiedToken, error) {
	claims, err := v.parser.ParseToken(ctx, token)
	if err != nil {
		return nil, auth.Unauthenticated("invalid token", fmt.Errorf("%w: %v", auth.ErrInvalidToken, err))
	}
	return verifiedFromClaims(ProviderOIDC, claims)
}
