package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tenantgate/tenantgate/cmd/tenantgate/internal/logging"
)

// NATSPublisher publishes JSON events on <prefix>.<event type>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// ConnectNATS dials the audit NATS server.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("tenantgate-audit"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("audit NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("audit NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return conn, nil
}

// NewNATSPublisher creates a publisher on an established connection.
func NewNATSPublisher(conn *nats.Conn, prefix string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logging.WithComponent(logger, "audit_nats"),
	}
}

// Subject returns the NATS subject for an event type.
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// Publish sends the event. Failures are logged and swallowed.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	logger := logging.FromContext(ctx, p.logger)
	subject := Subject(p.prefix, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		logging.LogError(logger, "Failed to encode audit event", err, "subject", subject)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		logging.LogError(logger, "Failed to publish audit event to NATS", err, "subject", subject)
		return
	}
	logger.Debug("Audit event published to NATS", "subject", subject, "size", len(data))
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
