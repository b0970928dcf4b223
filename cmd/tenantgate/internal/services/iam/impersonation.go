package iam

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/audit"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/repository"
)

// ImpersonationMediator validates a request to act as another identity.
type ImpersonationMediator struct {
	identities repository.IdentityRepository
	format     auth.IdentifierFormat
	header     string
	audit      audit.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewImpersonationMediator creates a mediator. header names the request
// header carrying the target id and appears in validation messages.
func NewImpersonationMediator(
	identities repository.IdentityRepository,
	format auth.IdentifierFormat,
	header string,
	publisher audit.Publisher,
	logger *slog.Logger,
) *ImpersonationMediator {
	return &ImpersonationMediator{
		identities: identities,
		format:     format,
		header:     header,
		audit:      publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Apply sets the impersonated identity on state when targetID is present.
// An absent target returns state unchanged. On error the input state is
// returned and the request must be aborted.
func (m *ImpersonationMediator) Apply(ctx context.Context, state auth.RequestAuthState, targetID string) (auth.RequestAuthState, error) {
	if !state.Authenticated() {
		return state, auth.Unauthenticated("authentication required", nil)
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return state, nil
	}

	target, err := m.resolveTarget(ctx, state.Current(), m.header, targetID)
	if err != nil {
		return state, err
	}

	m.audit.Publish(ctx, audit.Event{
		Type:       audit.EventImpersonationStarted,
		ActorID:    state.Current().ID,
		SubjectID:  target.ID,
		TenantID:   target.Tenant(),
		OccurredAt: m.now().UTC(),
	})
	return state.WithImpersonation(target), nil
}

// resolveTarget checks the id format before any lookup. field names the
// input in the validation message.
func (m *ImpersonationMediator) resolveTarget(ctx context.Context, requester *models.Identity, field, targetID string) (*models.Identity, error) {
	if !m.format.Valid(targetID) {
		return nil, auth.Forbiddenf("%s must be a %s", field, m.format.Describe())
	}
	return m.ValidateTarget(ctx, requester, targetID)
}

// ValidateTarget applies the impersonation rules in order: requester role,
// target existence, target role, target status, self, tenant. The first
// failing rule decides the message.
func (m *ImpersonationMediator) ValidateTarget(ctx context.Context, requester *models.Identity, targetID string) (*models.Identity, error) {
	if !canImpersonate(requester) {
		return nil, auth.Forbidden("no permission to impersonate")
	}

	target, err := m.identities.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.logger.DebugContext(ctx, "impersonation target not found",
				"requester_id", requester.ID, "target_id", targetID)
			return nil, auth.Forbidden("cannot impersonate the requested user")
		}
		return nil, auth.Internal("impersonation target lookup failed", err)
	}
	if target.IsDeleted() {
		m.logger.DebugContext(ctx, "impersonation target deleted",
			"requester_id", requester.ID, "target_id", targetID)
		return nil, auth.Forbidden("cannot impersonate the requested user")
	}

	if isSystemAdministrator(target) {
		return nil, auth.Forbidden("cannot impersonate a SystemAdministrator")
	}
	if !target.IsActive() {
		return nil, auth.Forbidden("cannot impersonate an inactive or suspended user")
	}
	if target.ID == requester.ID {
		return nil, auth.Forbidden("cannot impersonate yourself")
	}

	if isSystemAdministrator(requester) {
		return target, nil
	}
	if !requester.SameTenant(target) {
		return nil, auth.Forbidden("cross-tenant impersonation is not allowed")
	}
	return target, nil
}
