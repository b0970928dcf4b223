package iam

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
)

func TestIdentityResolver_ExistingIdentity(t *testing.T) {
	identities := fixtureIdentities()
	r := NewIdentityResolver(identities, auth.IdentifierUUID, slog.Default())

	identity, err := r.Resolve(context.Background(), &VerifiedToken{Subject: subjectAdmin})
	require.NoError(t, err)
	assert.Equal(t, idAdmin, identity.ID)
	assert.Empty(t, identities.created)
}

func TestIdentityResolver_FirstSightCreatesActiveIdentity(t *testing.T) {
	identities := fixtureIdentities()
	r := NewIdentityResolver(identities, auth.IdentifierUUID, slog.Default())

	identity, err := r.Resolve(context.Background(), &VerifiedToken{
		Provider: ProviderSession,
		Subject:  "brand-new",
		Profile:  Profile{Email: "new@example.com", FirstName: "New", LastName: "Person"},
	})
	require.NoError(t, err)
	require.Len(t, identities.created, 1)
	assert.Equal(t, "brand-new", identity.ExternalSubjectID)
	assert.Equal(t, "new@example.com", identity.Email)
	assert.Equal(t, models.StatusActive, identity.Status)
	assert.Nil(t, identity.RoleID)
	assert.Nil(t, identity.TenantID)

	again, err := r.Resolve(context.Background(), &VerifiedToken{Subject: "brand-new"})
	require.NoError(t, err)
	assert.Equal(t, identity.ID, again.ID)
	assert.Len(t, identities.created, 1)
}

func TestIdentityResolver_FirstSightUsesIdentifierFormat(t *testing.T) {
	identities := fixtureIdentities()
	r := NewIdentityResolver(identities, auth.IdentifierInteger, slog.Default())

	identity, err := r.Resolve(context.Background(), &VerifiedToken{Subject: "numbered"})
	require.NoError(t, err)
	assert.True(t, auth.IdentifierInteger.Valid(identity.ID), "provisioned id %q", identity.ID)

	mediator := NewImpersonationMediator(identities, auth.IdentifierInteger, testHeader, &recordingPublisher{}, slog.Default())
	target, err := mediator.resolveTarget(context.Background(), identities.byID[idAdmin], testHeader, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, target.ID)
}

func TestIdentityResolver_FirstSightRaceReadsWinner(t *testing.T) {
	identities := fixtureIdentities()
	winner := newIdentity("01920000-0000-7000-8000-00000000abcd", "racy", tenantA, roleMember)
	identities.raceWinner = winner
	r := NewIdentityResolver(identities, auth.IdentifierUUID, slog.Default())

	identity, err := r.Resolve(context.Background(), &VerifiedToken{Subject: "racy"})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, identity.ID)
}

func TestIdentityResolver_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		message string
		wantErr error
	}{
		{name: "soft deleted", subject: "sub-deleted", message: "account deleted", wantErr: auth.ErrAccountDeleted},
		{name: "suspended", subject: "sub-suspended", message: "account not active", wantErr: auth.ErrAccountNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewIdentityResolver(fixtureIdentities(), auth.IdentifierUUID, slog.Default())
			_, err := r.Resolve(context.Background(), &VerifiedToken{Subject: tt.subject})
			require.Error(t, err)
			assert.Equal(t, auth.KindUnauthenticated, auth.KindOf(err))
			assert.Equal(t, tt.message, auth.MessageOf(err))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIdentityResolver_StoreFailuresAreInternal(t *testing.T) {
	identities := fixtureIdentities()
	identities.getErr = errors.New("connection refused")
	r := NewIdentityResolver(identities, auth.IdentifierUUID, slog.Default())

	_, err := r.Resolve(context.Background(), &VerifiedToken{Subject: subjectAdmin})
	require.Error(t, err)
	assert.Equal(t, auth.KindInternal, auth.KindOf(err))

	identities = fixtureIdentities()
	identities.createErr = errors.New("disk full")
	r = NewIdentityResolver(identities, auth.IdentifierUUID, slog.Default())
	_, err = r.Resolve(context.Background(), &VerifiedToken{Subject: "unknown"})
	require.Error(t, err)
	assert.Equal(t, auth.KindInternal, auth.KindOf(err))
}
