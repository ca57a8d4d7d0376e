package store

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Email send statuses.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// EmailSend is one row of the outgoing email audit trail.
type EmailSend struct {
	ID          string
	UserID      string
	Recipient   string
	Subject     string
	Attachments int
	Status      string
	Error       string
	SentAt      time.Time
}

// RecordEmailSend appends an audit row. ID and SentAt are filled in when empty.
// ULIDs sort by creation time, so listing by id is listing by send order.
func (s *Store) RecordEmailSend(ctx context.Context, e *EmailSend) error {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now().UTC()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.SentAt), ulid.DefaultEntropy()).String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_sends (id, user_id, recipient, subject, attachments, status, error, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Recipient, e.Subject, e.Attachments, e.Status, e.Error,
		e.SentAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: record email send: %w", err)
	}
	return nil
}

// ListEmailSends returns the newest sends for userID, newest first.
func (s *Store) ListEmailSends(ctx context.Context, userID string, limit int) ([]EmailSend, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, recipient, subject, attachments, status, error, sent_at
		FROM email_sends
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list email sends: %w", err)
	}
	defer rows.Close()

	var out []EmailSend
	for rows.Next() {
		var (
			e      EmailSend
			sentAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Recipient, &e.Subject, &e.Attachments, &e.Status, &e.Error, &sentAt); err != nil {
			return nil, fmt.Errorf("store: scan email send: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, sentAt); err == nil {
			e.SentAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate email sends: %w", err)
	}
	return out, nil
}
