package iam

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/audit"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/config"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/db/models"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/logging"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/repository"
	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/telemetry"
)

// iamService implements the Service interface by composing the pipeline stages.
type iamService struct {
	dispatcher  *ProviderDispatcher
	resolver    *IdentityResolver
	mediator    *ImpersonationMediator
	permissions *PermissionResolver
	contexts    *AuthContextService

	audit   audit.Publisher
	metrics *telemetry.AuthMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// IAMServiceDependencies contains all dependencies for IAM service construction.
type IAMServiceDependencies struct {
	Identities repository.IdentityRepository
	Roles      repository.RoleRepository
	Tenants    repository.TenantRepository
	Claims     repository.ClaimsStore

	Audit   audit.Publisher        // defaults to audit.Discard
	Metrics *telemetry.AuthMetrics // optional
	Logger  *slog.Logger           // defaults to slog.Default

	// Verifiers replaces the verifier built for a provider. Providers not
	// listed keep the verifiers derived from config.
	Verifiers map[Provider]TokenVerifier
}

// IAMServiceConfig contains configuration for IAM service construction.
type IAMServiceConfig struct {
	Config *config.Config
	// Now overrides the clock used for validatedAt and audit timestamps.
	Now func() time.Time
}

// NewIAMService creates a new IAM service with all dependencies.
//
// A missing signing secret, an invalid identifier format or an incomplete
// OIDC configuration is a Configuration error: the server must not start.
func NewIAMService(deps IAMServiceDependencies, cfg IAMServiceConfig) (Service, error) {
	if deps.Identities == nil || deps.Roles == nil || deps.Tenants == nil || deps.Claims == nil {
		return nil, auth.ConfigurationError("iam service requires identity, role, tenant and claims stores", nil)
	}
	if cfg.Config == nil {
		return nil, auth.ConfigurationError("iam service requires configuration", nil)
	}
	if deps.Audit == nil {
		deps.Audit = audit.Discard{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := logging.WithComponent(deps.Logger, "iam")
	c := cfg.Config

	format, err := auth.ParseIdentifierFormat(c.Auth.IdentifierFormat)
	if err != nil {
		return nil, auth.ConfigurationError("invalid identifier format", err)
	}

	dispatcher, err := initializeDispatcher(c, deps.Verifiers)
	if err != nil {
		return nil, err
	}

	bypass, err := NewBypassPolicy(c.Authz.UserManagementPermissions, c.Authz.DocumentsPrefix)
	if err != nil {
		return nil, auth.ConfigurationError("build bypass policy", err)
	}

	mediator := NewImpersonationMediator(deps.Identities, format, c.Auth.ImpersonationHeader, deps.Audit, logger)
	mediator.now = cfg.Now

	return &iamService{
		dispatcher:  dispatcher,
		resolver:    NewIdentityResolver(deps.Identities, format, logger),
		mediator:    mediator,
		permissions: NewPermissionResolver(deps.Roles, deps.Tenants, bypass, logger),
		contexts:    NewAuthContextService(deps.Tenants, deps.Claims, mediator, deps.Audit, logger, cfg.Now),
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         cfg.Now,
	}, nil
}

// initializeDispatcher registers the session verifier, the OIDC verifier when
// an issuer is configured, and any overrides.
func initializeDispatcher(c *config.Config, overrides map[Provider]TokenVerifier) (*ProviderDispatcher, error) {
	dispatcher := NewProviderDispatcher(DispatcherConfig{
		SessionIssuer: c.Auth.SessionIssuer,
		OIDCIssuer:    c.Auth.OIDC.Issuer,
	})

	session, err := NewSessionTokenVerifier(c.Auth.SigningSecret, c.Auth.SessionIssuer, c.Auth.ClockSkew)
	if err != nil {
		return nil, err
	}
	dispatcher.Register(ProviderSession, session)

	if _, overridden := overrides[ProviderOIDC]; c.Auth.OIDC.Issuer != "" && !overridden {
		oidc, err := NewOIDCTokenVerifier(c.Auth.OIDC.Issuer, c.Auth.OIDC.Audience)
		if err != nil {
			return nil, err
		}
		dispatcher.Register(ProviderOIDC, oidc)
	}

	for provider, verifier := range overrides {
		dispatcher.Register(provider, verifier)
	}
	return dispatcher, nil
}

// =============================================================================
// Request path
// =============================================================================

func (s *iamService) Authenticate(ctx context.Context, authorization string) (auth.RequestAuthState, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Authenticate")
	defer span.End()
	start := time.Now()

	state, err := s.authenticate(ctx, authorization)
	if err == nil {
		span.SetAttributes(
			attribute.String(telemetry.AttrIdentityID, state.Current().ID),
			attribute.String(telemetry.AttrIdentityRole, state.Current().RoleName()),
		)
	}
	s.observe(ctx, span, telemetry.StageAuthenticate, start, err)
	return state, err
}

func (s *iamService) authenticate(ctx context.Context, authorization string) (auth.RequestAuthState, error) {
	token, err := auth.ExtractBearerToken(authorization)
	if err != nil {
		return auth.RequestAuthState{}, auth.Unauthenticated("missing or malformed Authorization header", err)
	}

	verified, err := s.dispatcher.Verify(ctx, token)
	if err != nil {
		return auth.RequestAuthState{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(telemetry.AttrTokenProvider, verified.Provider.String()),
	)

	identity, err := s.resolver.Resolve(ctx, verified)
	if err != nil {
		return auth.RequestAuthState{}, err
	}
	return auth.NewRequestAuthState(identity), nil
}

func (s *iamService) Impersonate(ctx context.Context, state auth.RequestAuthState, targetID string) (auth.RequestAuthState, error) {
	if strings.TrimSpace(targetID) == "" {
		return s.mediator.Apply(ctx, state, "")
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Impersonate")
	defer span.End()
	start := time.Now()

	next, err := s.mediator.Apply(ctx, state, targetID)
	if err == nil {
		span.SetAttributes(
			attribute.Bool(telemetry.AttrImpersonating, next.IsImpersonating()),
			attribute.String(telemetry.AttrEffectiveIdentityID, next.Effective().ID),
		)
	}
	s.observe(ctx, span, telemetry.StageImpersonate, start, err)
	return next, err
}

func (s *iamService) Authorize(ctx context.Context, state auth.RequestAuthState, policy auth.RoutePolicy) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Authorize",
		attribute.StringSlice(telemetry.AttrRequiredPermissions, policy.RequiredPermissions),
		attribute.Bool(telemetry.AttrImpersonating, state.IsImpersonating()),
	)
	defer span.End()
	start := time.Now()

	reason, err := s.permissions.Decide(ctx, state, policy)
	span.SetAttributes(
		attribute.Bool(telemetry.AttrPolicyAllowed, err == nil),
		attribute.String(telemetry.AttrDecisionReason, reason),
	)
	s.observe(ctx, span, telemetry.StageAuthorize, start, err)

	if auth.KindOf(err) == auth.KindForbidden {
		s.audit.Publish(ctx, audit.Event{
			Type:      audit.EventAccessDenied,
			ActorID:   state.Current().ID,
			SubjectID: state.Effective().ID,
			TenantID:  state.Effective().Tenant(),
			Reason:    auth.MessageOf(err),
			Attributes: map[string]string{
				"required_permissions": strings.Join(policy.RequiredPermissions, ","),
			},
			OccurredAt: s.now().UTC(),
		})
	}
	return err
}

// =============================================================================
// Auth context
// =============================================================================

func (s *iamService) RefreshContext(ctx context.Context, caller *models.Identity, req RefreshRequest) (*RefreshResult, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.RefreshContext")
	defer span.End()
	start := time.Now()

	result, err := s.contexts.RefreshContext(ctx, caller, req)
	if err == nil && result.TenantID != nil {
		span.SetAttributes(attribute.String(telemetry.AttrTenantID, *result.TenantID))
	}
	s.observe(ctx, span, telemetry.StageRefresh, start, err)
	return result, err
}

func (s *iamService) ClearContext(ctx context.Context, caller *models.Identity) (*models.IdentityClaims, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.ClearContext")
	defer span.End()
	start := time.Now()

	claims, err := s.contexts.ClearContext(ctx, caller)
	s.observe(ctx, span, telemetry.StageClear, start, err)
	return claims, err
}

func (s *iamService) GetClaims(ctx context.Context, identityID string) (*models.IdentityClaims, error) {
	return s.contexts.GetClaims(ctx, identityID)
}

func (s *iamService) ValidatePolicies(ctx context.Context, policies []auth.RoutePolicy) error {
	return s.permissions.ValidatePolicies(ctx, policies)
}

// observe records the stage outcome on the span, in metrics and in the log.
// Denials log at warn; internal failures at error.
func (s *iamService) observe(ctx context.Context, span trace.Span, stage string, start time.Time, err error) {
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err == nil {
		s.metrics.Record(ctx, stage, telemetry.OutcomeAllowed, elapsed)
		return
	}

	kind := auth.KindOf(err)
	s.metrics.Record(ctx, stage, kind.String(), elapsed)

	switch kind {
	case auth.KindUnauthenticated, auth.KindForbidden:
		telemetry.AddEvent(span, "auth.denied",
			attribute.String("auth.kind", kind.String()),
			attribute.String(telemetry.AttrDecisionReason, auth.MessageOf(err)),
		)
		s.logger.WarnContext(ctx, "auth pipeline denied request",
			"stage", stage,
			"kind", kind.String(),
			"reason", auth.MessageOf(err),
			"error", err.Error(),
		)
	default:
		telemetry.RecordError(span, err)
		logging.LogError(s.logger, "auth pipeline failure", err, "stage", stage)
	}
}
