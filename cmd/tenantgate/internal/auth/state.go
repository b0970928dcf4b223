package auth

import "github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"

// RequestAuthState is the per-request result of the authorization pipeline.
//
// It is a value type: every stage returns a new state instead of mutating the
// one it received. The zero value is unauthenticated.
type RequestAuthState struct {
	current       *models.Identity
	impersonated  *models.Identity
	impersonating bool
}

// NewRequestAuthState starts a state for an authenticated identity.
func NewRequestAuthState(current *models.Identity) RequestAuthState {
	return RequestAuthState{current: current}
}

// WithImpersonation returns a copy acting as target.
func (s RequestAuthState) WithImpersonation(target *models.Identity) RequestAuthState {
	return RequestAuthState{
		current:       s.current,
		impersonated:  target,
		impersonating: target != nil,
	}
}

// Authenticated reports whether a current identity is present.
func (s RequestAuthState) Authenticated() bool { return s.current != nil }

// Current is the identity proven by the bearer token.
func (s RequestAuthState) Current() *models.Identity { return s.current }

// IsImpersonating reports whether a delegation target is active.
func (s RequestAuthState) IsImpersonating() bool { return s.impersonating }

// Effective is the identity whose permissions govern the request.
func (s RequestAuthState) Effective() *models.Identity {
	if s.impersonating {
		return s.impersonated
	}
	return s.current
}
