package iam

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/audit"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/repository"
)

// RefreshRequest is the caller's requested context. Empty fields are absent.
type RefreshRequest struct {
	TenantID           string
	ImpersonatedUserID string
}

// RefreshResult echoes the values just persisted.
type RefreshResult struct {
	Updated            bool
	Message            string
	TenantID           *string
	ImpersonatedUserID *string
	Claims             *models.IdentityClaims
}

// RefreshMessage tells the caller a new token is needed for the context to apply.
const RefreshMessage = "Context updated. Request a new token to apply it."

// AuthContextService validates and persists the caller's identity claims.
// It is the only writer of the ClaimsStore.
type AuthContextService struct {
	tenants  repository.TenantRepository
	claims   repository.ClaimsStore
	mediator *ImpersonationMediator
	audit    audit.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthContextService creates the service. now defaults to time.Now.
func NewAuthContextService(
	tenants repository.TenantRepository,
	claims repository.ClaimsStore,
	mediator *ImpersonationMediator,
	publisher audit.Publisher,
	logger *slog.Logger,
	now func() time.Time,
) *AuthContextService {
	if now == nil {
		now = time.Now
	}
	return &AuthContextService{
		tenants:  tenants,
		claims:   claims,
		mediator: mediator,
		audit:    publisher,
		logger:   logger,
		now:      now,
	}
}

// RefreshContext validates the requested tenant and impersonation target for
// caller and replaces the caller's claims with the validated values.
// caller is the authenticated identity, never an impersonated one.
func (s *AuthContextService) RefreshContext(ctx context.Context, caller *models.Identity, req RefreshRequest) (*RefreshResult, error) {
	if caller == nil {
		return nil, auth.Unauthenticated("authentication required", nil)
	}

	var tenantID, targetID *string

	if requested := strings.TrimSpace(req.TenantID); requested != "" {
		if err := s.authorizeTenant(ctx, caller, requested); err != nil {
			return nil, err
		}
		tenantID = &requested
	}

	if requested := strings.TrimSpace(req.ImpersonatedUserID); requested != "" {
		target, err := s.mediator.resolveTarget(ctx, caller, "impersonatedUserId", requested)
		if err != nil {
			return nil, err
		}
		id := target.ID
		targetID = &id
	}

	tenantIDs, err := s.accessibleTenants(ctx, caller, tenantID)
	if err != nil {
		return nil, err
	}

	validatedAt := s.now().UTC()
	claims := &models.IdentityClaims{
		IdentityID:             caller.ID,
		TenantID:               tenantID,
		TenantIDs:              tenantIDs,
		ImpersonatedIdentityID: targetID,
		ImpersonationAllowed:   canImpersonate(caller),
		ValidatedAt:            &validatedAt,
	}
	if err := s.claims.Replace(ctx, claims); err != nil {
		return nil, auth.Internal("failed to persist identity claims", err)
	}

	event := audit.Event{
		Type:       audit.EventContextRefreshed,
		ActorID:    caller.ID,
		OccurredAt: validatedAt,
	}
	if tenantID != nil {
		event.TenantID = *tenantID
	}
	if targetID != nil {
		event.SubjectID = *targetID
	}
	s.audit.Publish(ctx, event)

	return &RefreshResult{
		Updated:            true,
		Message:            RefreshMessage,
		TenantID:           tenantID,
		ImpersonatedUserID: targetID,
		Claims:             claims,
	}, nil
}

// ClearContext resets the caller's own claims. Calling it repeatedly is safe.
func (s *AuthContextService) ClearContext(ctx context.Context, caller *models.Identity) (*models.IdentityClaims, error) {
	if caller == nil {
		return nil, auth.Unauthenticated("authentication required", nil)
	}

	cleared := models.EmptyClaims(caller.ID)
	if err := s.claims.Replace(ctx, cleared); err != nil {
		return nil, auth.Internal("failed to clear identity claims", err)
	}

	s.audit.Publish(ctx, audit.Event{
		Type:       audit.EventContextCleared,
		ActorID:    caller.ID,
		OccurredAt: s.now().UTC(),
	})
	return cleared, nil
}

// GetClaims returns the persisted claims, or an empty record.
func (s *AuthContextService) GetClaims(ctx context.Context, identityID string) (*models.IdentityClaims, error) {
	claims, err := s.claims.Get(ctx, identityID)
	if err != nil {
		return nil, auth.Internal("failed to read identity claims", err)
	}
	return claims, nil
}

func (s *AuthContextService) authorizeTenant(ctx context.Context, caller *models.Identity, tenantID string) error {
	if isSystemAdministrator(caller) {
		if _, err := s.tenants.GetByID(ctx, tenantID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return auth.Forbidden("Tenant does not exist")
			}
			return auth.Internal("tenant lookup failed", err)
		}
		return nil
	}

	if caller.Tenant() == tenantID {
		return nil
	}

	if isCustomerSuccess(caller) {
		assigned, err := s.tenants.IsAssigned(ctx, caller.ID, tenantID)
		if err != nil {
			return auth.Internal("tenant assignment lookup failed", err)
		}
		if assigned {
			return nil
		}
	}

	s.logger.DebugContext(ctx, "tenant context denied",
		"identity_id", caller.ID, "tenant_id", tenantID, "role", caller.RoleName())
	return auth.Forbidden("no access to the requested tenant")
}

// accessibleTenants is persisted as tenantIds. Administrators reach every
// tenant, so only the selected one is recorded for them.
func (s *AuthContextService) accessibleTenants(ctx context.Context, caller *models.Identity, selected *string) (models.StringList, error) {
	if isSystemAdministrator(caller) {
		if selected == nil {
			return models.StringList{}, nil
		}
		return models.StringList{*selected}, nil
	}

	seen := map[string]struct{}{}
	if own := caller.Tenant(); own != "" {
		seen[own] = struct{}{}
	}
	assigned, err := s.tenants.ListAssignedTenantIDs(ctx, caller.ID)
	if err != nil {
		return nil, auth.Internal("tenant assignment lookup failed", err)
	}
	for _, id := range assigned {
		seen[id] = struct{}{}
	}

	ids := make(models.StringList, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
