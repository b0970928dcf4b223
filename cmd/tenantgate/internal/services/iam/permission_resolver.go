package iam

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/repository"
)

// Decision reasons, recorded on spans and in logs.
const (
	ReasonOpenRoute      = "open_route"
	ReasonSystemAdmin    = "system_administrator"
	ReasonSupportBypass  = "customer_success_bypass"
	ReasonTenantOwner    = "tenant_owner"
	ReasonRolePermission = "role_permission"
	ReasonNoRole         = "no_role"
	ReasonMissingPerm    = "missing_permission"
)

// PermissionResolver decides whether the effective identity may access a
// route. Required permissions are OR-ed.
type PermissionResolver struct {
	roles   repository.RoleRepository
	tenants repository.TenantRepository
	bypass  *BypassPolicy
	logger  *slog.Logger
}

// NewPermissionResolver creates a resolver.
func NewPermissionResolver(roles repository.RoleRepository, tenants repository.TenantRepository, bypass *BypassPolicy, logger *slog.Logger) *PermissionResolver {
	return &PermissionResolver{roles: roles, tenants: tenants, bypass: bypass, logger: logger}
}

// Authorize returns nil when access is allowed and a Forbidden error otherwise.
func (p *PermissionResolver) Authorize(ctx context.Context, state auth.RequestAuthState, policy auth.RoutePolicy) error {
	_, err := p.Decide(ctx, state, policy)
	return err
}

// Decide is Authorize that also reports which rule decided.
func (p *PermissionResolver) Decide(ctx context.Context, state auth.RequestAuthState, policy auth.RoutePolicy) (string, error) {
	if policy.IsOpen() {
		return ReasonOpenRoute, nil
	}
	if !state.Authenticated() {
		return "", auth.Unauthenticated("authentication required", nil)
	}
	effective := state.Effective()

	if isSystemAdministrator(effective) {
		return ReasonSystemAdmin, nil
	}

	if isCustomerSuccess(effective) {
		ok, err := p.bypass.Allows(auth.RoleCustomerSuccess, policy.RequiredPermissions)
		if err != nil {
			return "", auth.Internal("evaluate bypass policy", err)
		}
		if ok {
			return ReasonSupportBypass, nil
		}
	}

	owner, err := p.ownsTenant(ctx, effective)
	if err != nil {
		return "", err
	}
	if owner {
		return ReasonTenantOwner, nil
	}

	subject := "user"
	if state.IsImpersonating() {
		subject = "impersonated user"
	}

	if effective.RoleID == nil || *effective.RoleID == "" {
		return ReasonNoRole, auth.Forbiddenf("%s has no role assigned", subject)
	}

	granted, err := p.roles.PermissionsForRole(ctx, *effective.RoleID)
	if err != nil {
		return "", auth.Internal("load role permissions", err)
	}
	held := make(map[string]struct{}, len(granted))
	for _, name := range granted {
		held[name] = struct{}{}
	}
	for _, required := range policy.RequiredPermissions {
		if _, ok := held[required]; ok {
			return ReasonRolePermission, nil
		}
	}

	return ReasonMissingPerm, auth.Forbiddenf("%s lacks required permission(s): %s",
		subject, strings.Join(policy.RequiredPermissions, ", "))
}

func (p *PermissionResolver) ownsTenant(ctx context.Context, identity *models.Identity) (bool, error) {
	tenantID := identity.Tenant()
	if tenantID == "" {
		return false, nil
	}
	tenant, err := p.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, auth.Internal("load tenant", err)
	}
	return tenant.IsOwnedBy(identity.ID), nil
}

// ValidatePolicies rejects route policies naming permissions missing from
// the catalog. Run at startup so a typo cannot silently lock a route.
func (p *PermissionResolver) ValidatePolicies(ctx context.Context, policies []auth.RoutePolicy) error {
	names, err := p.roles.ListPermissionNames(ctx)
	if err != nil {
		return auth.Internal("list permissions", err)
	}
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}

	unknown := map[string]struct{}{}
	for _, policy := range policies {
		for _, perm := range policy.RequiredPermissions {
			if _, ok := known[perm]; !ok {
				unknown[perm] = struct{}{}
			}
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	list := make([]string, 0, len(unknown))
	for perm := range unknown {
		list = append(list, perm)
	}
	sort.Strings(list)
	return auth.ConfigurationError("route policies reference unknown permissions: "+strings.Join(list, ", "), nil)
}
