package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Pipeline stages recorded by AuthMetrics.
const (
	StageAuthenticate = "authenticate"
	StageImpersonate  = "impersonate"
	StageAuthorize    = "authorize"
	StageRefresh      = "refresh_context"
	StageClear        = "clear_context"
)

// AuthMetrics holds instruments for authorization pipeline decisions.
type AuthMetrics struct {
	Decisions metric.Int64Counter     // every stage outcome
	Denials   metric.Int64Counter     // non-success outcomes
	Duration  metric.Float64Histogram // stage latency
}

// NewAuthMetrics creates the instruments on the global meter provider.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("tenantgate/auth")

	decisions, err := meter.Int64Counter(
		"auth.decision.count",
		metric.WithDescription("Total number of authorization pipeline decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	denials, err := meter.Int64Counter(
		"auth.denial.count",
		metric.WithDescription("Total number of rejected pipeline stages"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"auth.stage.duration",
		metric.WithDescription("Authorization pipeline stage duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{Decisions: decisions, Denials: denials, Duration: duration}, nil
}

// Record registers one stage outcome. outcome is "allowed" or an error kind.
// A nil receiver is a no-op so callers need not guard disabled metrics.
func (m *AuthMetrics) Record(ctx context.Context, stage, outcome string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("auth.stage", stage),
		attribute.String("auth.outcome", outcome),
	)
	m.Decisions.Add(ctx, 1, attrs)
	m.Duration.Record(ctx, durationMs, attrs)
	if outcome != OutcomeAllowed {
		m.Denials.Add(ctx, 1, attrs)
	}
}

// OutcomeAllowed marks a successful stage.
const OutcomeAllowed = "allowed"
