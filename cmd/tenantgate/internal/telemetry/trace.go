package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a span on the named tracer.
//
//	ctx, span := telemetry.StartSpan(ctx, TracerIAM, "iam.Authenticate",
//	    attribute.String(AttrIdentityID, id),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// TracerIAM names the tracer for the auth pipeline stages.
const TracerIAM = "tenantgate/services/iam"

// Common attribute keys
const (
	AttrIdentityID          = "identity.id"
	AttrEffectiveIdentityID = "identity.effective_id"
	AttrIdentityRole        = "identity.role"
	AttrTokenProvider       = "token.provider"
	AttrImpersonating       = "auth.impersonating"
	AttrTenantID            = "tenant.id"
	AttrRequiredPermissions = "policy.required_permissions"
	AttrPolicyAllowed       = "policy.allowed"
	AttrDecisionReason      = "policy.reason"
)
