// Package audit publishes security-relevant decisions of the auth pipeline.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/logging"
)

// Event types
const (
	EventImpersonationStarted = "impersonation.started"
	EventContextRefreshed     = "context.refreshed"
	EventContextCleared       = "context.cleared"
	EventAccessDenied         = "access.denied"
)

// Event is one audit record. ActorID is always the authenticated identity,
// even while impersonating.
type Event struct {
	Type       string            `json:"type"`
	ActorID    string            `json:"actorId"`
	SubjectID  string            `json:"subjectId,omitempty"`
	TenantID   string            `json:"tenantId,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Publisher emits audit events. Publishing never fails the caller; delivery
// problems are logged by the implementation.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs at info level.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logging.WithComponent(logger, "audit")}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	attrs := []any{
		"event_type", event.Type,
		"actor_id", event.ActorID,
	}
	if event.SubjectID != "" {
		attrs = append(attrs, "subject_id", event.SubjectID)
	}
	if event.TenantID != "" {
		attrs = append(attrs, "tenant_id", event.TenantID)
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	for k, v := range event.Attributes {
		attrs = append(attrs, k, v)
	}
	p.logger.InfoContext(ctx, "audit event", attrs...)
}

// Discard drops every event.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(context.Context, Event) {}
