package iam

import (
	"context"
	"fmt"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
)

// Provider identifies a family of token issuers.
type Provider int

const (
	ProviderUnknown Provider = iota
	// ProviderSession tokens are HS256-signed with the deployment's signing secret.
	ProviderSession
	// ProviderOIDC tokens are asymmetrically signed by an external issuer and verified via JWKS.
	ProviderOIDC
)

func (p Provider) String() string {
	switch p {
	case ProviderSession:
		return "session"
	case ProviderOIDC:
		return "oidc"
	default:
		return "unknown"
	}
}

// Profile holds display fields taken from the token on first sight.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
}

// VerifiedToken is the output of a TokenVerifier.
type VerifiedToken struct {
	Provider Provider
	Subject  string
	Profile  Profile
	// Claims is the raw payload. Role-like claims in it are never used for
	// authorization; roles come from the directory.
	Claims map[string]any
}

// TokenVerifier checks signature and expiry and extracts the subject.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*VerifiedToken, error)
}

var (
	hmacAlgorithms = []jose.SignatureAlgorithm{jose.HS256, jose.HS384, jose.HS512}

	asymmetricAlgorithms = []jose.SignatureAlgorithm{
		jose.RS256, jose.RS384, jose.RS512,
		jose.ES256, jose.ES384, jose.ES512,
		jose.PS256, jose.PS384, jose.PS512,
		jose.EdDSA,
	}

	parseAlgorithms = append(append([]jose.SignatureAlgorithm{}, hmacAlgorithms...), asymmetricAlgorithms...)
)

// DispatcherConfig holds the issuer markers used for routing.
type DispatcherConfig struct {
	// SessionIssuer restricts session routing to this iss value. Empty accepts any.
	SessionIssuer string
	// OIDCIssuer is the iss value of the external provider. Empty disables routing to it.
	OIDCIssuer string
}

// ProviderDispatcher routes a raw token to exactly one registered verifier.
// Registration happens at startup; dispatch is read-only.
type ProviderDispatcher struct {
	cfg       DispatcherConfig
	verifiers map[Provider]TokenVerifier
}

// NewProviderDispatcher creates a dispatcher with no verifiers.
func NewProviderDispatcher(cfg DispatcherConfig) *ProviderDispatcher {
	return &ProviderDispatcher{cfg: cfg, verifiers: make(map[Provider]TokenVerifier)}
}

// Register binds a verifier to a provider, replacing any previous one.
func (d *ProviderDispatcher) Register(p Provider, v TokenVerifier) *ProviderDispatcher {
	d.verifiers[p] = v
	return d
}

// Classify determines the provider from the token's structure and its
// unverified header and issuer. The signature is not checked here.
func (d *ProviderDispatcher) Classify(token string) (Provider, error) {
	switch strings.Count(token, ".") {
	case 2:
	case 4:
		return ProviderUnknown, fmt.Errorf("%w: encrypted tokens are not accepted", auth.ErrUnsupportedTokenType)
	default:
		return ProviderUnknown, fmt.Errorf("%w: not a compact JWS", auth.ErrUnsupportedTokenType)
	}

	parsed, err := josejwt.ParseSigned(token, parseAlgorithms)
	if err != nil {
		return ProviderUnknown, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	if len(parsed.Headers) != 1 {
		return ProviderUnknown, fmt.Errorf("%w: expected exactly one signature", auth.ErrInvalidToken)
	}

	var marker struct {
		Issuer string `json:"iss"`
	}
	if err := parsed.UnsafeClaimsWithoutVerification(&marker); err != nil {
		return ProviderUnknown, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	alg := jose.SignatureAlgorithm(parsed.Headers[0].Algorithm)
	provider := ProviderUnknown
	switch {
	case alg == jose.HS256 && (d.cfg.SessionIssuer == "" || marker.Issuer == d.cfg.SessionIssuer):
		provider = ProviderSession
	case isAsymmetric(alg) && d.cfg.OIDCIssuer != "" && marker.Issuer == d.cfg.OIDCIssuer:
		provider = ProviderOIDC
	}

	if _, ok := d.verifiers[provider]; !ok {
		return ProviderUnknown, fmt.Errorf("%w: alg %s, issuer %q", auth.ErrUnsupportedTokenType, alg, marker.Issuer)
	}
	return provider, nil
}

// Verify classifies the token and runs the matching verifier.
func (d *ProviderDispatcher) Verify(ctx context.Context, token string) (*VerifiedToken, error) {
	provider, err := d.Classify(token)
	if err != nil {
		return nil, auth.Unauthenticated("unsupported or malformed token", err)
	}
	return d.verifiers[provider].Verify(ctx, token)
}

func isAsymmetric(alg jose.SignatureAlgorithm) bool {
	for _, a := range asymmetricAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}
