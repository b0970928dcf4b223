package iam

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
)

// tokenClaims lists the payload fields this service reads.
type tokenClaims struct {
	Subject    string `mapstructure:"sub"`
	Email      string `mapstructure:"email"`
	GivenName  string `mapstructure:"given_name"`
	FamilyName string `mapstructure:"family_name"`
	Name       string `mapstructure:"name"`
}

// verifiedFromClaims decodes a verified payload. Numeric subjects are
// accepted and rendered as strings.
func verifiedFromClaims(provider Provider, claims map[string]any) (*VerifiedToken, error) {
	var tc tokenClaims
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &tc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, auth.Internal("build claims decoder", err)
	}
	if err := decoder.Decode(claims); err != nil {
		return nil, auth.Unauthenticated("invalid token", fmt.Errorf("%w: malformed payload: %v", auth.ErrInvalidToken, err))
	}

	subject := strings.TrimSpace(tc.Subject)
	if subject == "" {
		return nil, auth.Unauthenticated("token missing subject", auth.ErrMissingSubject)
	}

	first, last := tc.GivenName, tc.FamilyName
	if first == "" && last == "" && tc.Name != "" {
		first, last, _ = strings.Cut(strings.TrimSpace(tc.Name), " ")
		last = strings.TrimSpace(last)
	}

	return &VerifiedToken{
		Provider: provider,
		Subject:  subject,
		Profile: Profile{
			Email:     strings.TrimSpace(tc.Email),
			FirstName: first,
			LastName:  last,
		},
		Claims: claims,
	}, nil
}
