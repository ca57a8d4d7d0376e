package mail

import (
	"context"
	"log/slog"

	"github.com/bdobrica/Hikari/internal/hikari/store"
)

// Recorder persists send attempts.
type Recorder interface {
	RecordEmailSend(ctx context.Context, e *store.EmailSend) error
}

var _ Recorder = (*store.Store)(nil)

// AuditedSender records every attempt made through Next. Audit failures are
// logged and never fail the send.
type AuditedSender struct {
	Next   Sender
	Audit  Recorder
	Logger *slog.Logger
}

var _ Sender = (*AuditedSender)(nil)

// Send forwards to Next and records the outcome.
func (a *AuditedSender) Send(ctx context.Context, m Message) error {
	err := a.Next.Send(ctx, m)

	row := &store.EmailSend{
		UserID:      m.UserID,
		Recipient:   m.To,
		Subject:     m.Subject,
		Attachments: len(m.Attachments),
		Status:      store.EmailStatusSent,
	}
	if err != nil {
		row.Status = store.EmailStatusFailed
		row.Error = err.Error()
	}
	if aerr := a.Audit.RecordEmailSend(context.WithoutCancel(ctx), row); aerr != nil {
		logger := a.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "email audit failed", "err", aerr)
	}
	return err
}
