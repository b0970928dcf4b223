package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
)

// SessionTokenVerifier verifies HS256 tokens signed with the deployment secret.
type SessionTokenVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewSessionTokenVerifier fails with a configuration error when secret is empty.
func NewSessionTokenVerifier(secret, issuer string, leeway time.Duration) (*SessionTokenVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, auth.ConfigurationError("signing secret is required", nil)
	}
	return &SessionTokenVerifier{secret: []byte(secret), issuer: issuer, leeway: leeway}, nil
}

// Verify checks signature, expiry and issuer, then extracts the subject.
func (v *SessionTokenVerifier) Verify(_ context.Context, token string) (*VerifiedToken, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		message := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			message = "token expired"
		}
		return nil, auth.Unauthenticated(message, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err))
	}

	return verifiedFromClaims(ProviderSession, claims)
}
