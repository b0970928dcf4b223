package audit

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	pub.Publish(context.Background(), Event{
		Type:       EventImpersonationStarted,
		ActorID:    "support-1",
		SubjectID:  "user-7",
		TenantID:   "tenant-1",
		Attributes: map[string]string{"path": "/api/articles"},
	})

	out := buf.String()
	assert.Contains(t, out, `"component":"audit"`)
	assert.Contains(t, out, `"event_type":"impersonation.started"`)
	assert.Contains(t, out, `"actor_id":"support-1"`)
	assert.Contains(t, out, `"subject_id":"user-7"`)
	assert.Contains(t, out, `"path":"/api/articles"`)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "tenantgate.audit.context.cleared", Subject("tenantgate.audit", EventContextCleared))
	assert.Equal(t, "access.denied", Subject("", EventAccessDenied))
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard{}.Publish(context.Background(), Event{Type: EventAccessDenied})
	})
}

func TestNATSPublisher_Integration(t *testing.T) {
	conn, err := nats.Connect(nats.DefaultURL)
	if err != nil {
		t.Skip("NATS server not available, skipping integration test")
	}
	defer conn.Close()

	sub, err := conn.SubscribeSync("tenantgate.test.>")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub := NewNATSPublisher(conn, "tenantgate.test", slog.Default())
	pub.Publish(context.Background(), Event{Type: EventContextRefreshed, ActorID: "a-1"})

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	assert.Equal(t, "tenantgate.test.context.refreshed", msg.Subject)
	assert.Contains(t, string(msg.Data), `"actorId":"a-1"`)
}
