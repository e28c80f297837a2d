package service

import (
	"context"
	"time"

	"github.com/intellicog/records/internal/events"
	"github.com/intellicog/records/pkg/logging"
)

// Mailer is the outgoing e-mail surface used by the services.
type Mailer interface {
	SendRecoveryCode(ctx context.Context, to, name, code string, ttl time.Duration) error
	SendReport(ctx context.Context, to string, patientID uint, pdf []byte) error
	SendSupport(ctx context.Context, replyTo, fullName, subject, message string) error
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// publish never fails the caller; delivery problems are only logged.
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := p.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", e.Type, "entity_id", e.EntityID, "error", err)
	}
}
