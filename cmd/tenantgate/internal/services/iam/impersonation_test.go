package iam

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/audit"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
)

func newTestMediator(format auth.IdentifierFormat) (*ImpersonationMediator, *mockIdentityRepository, *recordingPublisher) {
	identities := fixtureIdentities()
	publisher := &recordingPublisher{}
	return NewImpersonationMediator(identities, format, testHeader, publisher, slog.Default()), identities, publisher
}

func stateFor(t *testing.T, identities *mockIdentityRepository, id string) auth.RequestAuthState {
	t.Helper()
	identity, err := identities.GetByID(context.Background(), id)
	require.NoError(t, err)
	return auth.NewRequestAuthState(identity)
}

func TestImpersonationMediator_AbsentTargetIsNoop(t *testing.T) {
	m, identities, publisher := newTestMediator(auth.IdentifierUUID)
	state := stateFor(t, identities, idMemberA)

	next, err := m.Apply(context.Background(), state, "   ")
	require.NoError(t, err)
	assert.False(t, next.IsImpersonating())
	assert.Equal(t, idMemberA, next.Effective().ID)
	assert.Empty(t, publisher.types())
}

func TestImpersonationMediator_Apply(t *testing.T) {
	tests := []struct {
		name      string
		requester string
		target    string
		message   string
	}{
		{name: "administrator impersonates any tenant", requester: idAdmin, target: idMemberB},
		{name: "support impersonates own tenant", requester: idSupport, target: idMemberA},
		{name: "invalid identifier format", requester: idAdmin, target: "not-a-uuid", message: testHeader + " must be a valid UUID"},
		{name: "member cannot impersonate", requester: idMemberA, target: idMemberB, message: "no permission to impersonate"},
		{name: "non-system role named like administrator cannot impersonate", requester: idFakeAdmin, target: idMemberA, message: "no permission to impersonate"},
		{name: "missing target", requester: idAdmin, target: idMissing, message: "cannot impersonate the requested user"},
		{name: "deleted target looks missing", requester: idAdmin, target: idDeleted, message: "cannot impersonate the requested user"},
		{name: "administrator target", requester: idAdmin, target: idAdmin2, message: "cannot impersonate a SystemAdministrator"},
		{name: "support cannot impersonate administrator", requester: idSupport, target: idAdmin, message: "cannot impersonate a SystemAdministrator"},
		{name: "suspended target", requester: idAdmin, target: idSuspended, message: "cannot impersonate an inactive or suspended user"},
		{name: "self", requester: idSupport, target: idSupport, message: "cannot impersonate yourself"},
		{name: "support cross tenant", requester: idSupport, target: idMemberB, message: "cross-tenant impersonation is not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, identities, publisher := newTestMediator(auth.IdentifierUUID)
			state := stateFor(t, identities, tt.requester)

			next, err := m.Apply(context.Background(), state, tt.target)
			if tt.message != "" {
				require.Error(t, err)
				assert.Equal(t, auth.KindForbidden, auth.KindOf(err))
				assert.Equal(t, tt.message, auth.MessageOf(err))
				assert.False(t, next.IsImpersonating())
				assert.Empty(t, publisher.types())
				return
			}

			require.NoError(t, err)
			assert.True(t, next.IsImpersonating())
			assert.Equal(t, tt.requester, next.Current().ID)
			assert.Equal(t, tt.target, next.Effective().ID)
			assert.Equal(t, []string{audit.EventImpersonationStarted}, publisher.types())
			assert.False(t, state.IsImpersonating(), "input state must not change")
		})
	}
}

func TestImpersonationMediator_IntegerFormat(t *testing.T) {
	m, identities, _ := newTestMediator(auth.IdentifierInteger)
	state := stateFor(t, identities, idAdmin)

	_, err := m.Apply(context.Background(), state, idMemberA)
	require.Error(t, err)
	assert.Equal(t, testHeader+" must be a valid integer identifier", auth.MessageOf(err))
}

func TestImpersonationMediator_FormatCheckedBeforeRole(t *testing.T) {
	m, identities, _ := newTestMediator(auth.IdentifierUUID)
	state := stateFor(t, identities, idMemberA)

	_, err := m.Apply(context.Background(), state, "12")
	require.Error(t, err)
	assert.Contains(t, auth.MessageOf(err), "valid UUID")
}

func TestImpersonationMediator_LookupFailureIsInternal(t *testing.T) {
	m, identities, _ := newTestMediator(auth.IdentifierUUID)
	state := stateFor(t, identities, idAdmin)
	identities.getErr = errors.New("timeout")

	_, err := m.Apply(context.Background(), state, idMemberA)
	require.Error(t, err)
	assert.Equal(t, auth.KindInternal, auth.KindOf(err))
}

func TestImpersonationMediator_RequiresAuthenticatedState(t *testing.T) {
	m, _, _ := newTestMediator(auth.IdentifierUUID)
	_, err := m.Apply(context.Background(), auth.RequestAuthState{}, idMemberA)
	assert.Equal(t, auth.KindUnauthenticated, auth.KindOf(err))
}
