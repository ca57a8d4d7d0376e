// Package mail sends draft emails composed in the bot.
package mail

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"
)

// Attachment is a file added to a message.
type Attachment struct {
	Filename string
	Data     []byte
}

// Message is an outgoing email. UserID identifies the bot user that composed
// it and is only used for auditing.
type Message struct {
	UserID      string
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// ErrNoRecipient is returned for messages without a To address.
var ErrNoRecipient = errors.New("mail: recipient is required")

// ContentType guesses an attachment's MIME type from its extension.
func ContentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Compose renders m as an RFC 5322 message from the given address.
func Compose(from string, m Message, now time.Time) ([]byte, error) {
	if strings.TrimSpace(m.To) == "" {
		return nil, ErrNoRecipient
	}

	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", from)
	header("To", m.To)
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", messageID(from, now))
	header("MIME-Version", "1.0")

	if len(m.Attachments) == 0 {
		header("Content-Type", `text/plain; charset="utf-8"`)
		header("Content-Transfer-Encoding", "base64")
		buf.WriteString("\r\n")
		writeBase64(&buf, []byte(m.Body))
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	header("Content-Type", `multipart/mixed; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/plain; charset="utf-8"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, fmt.Errorf("mail: compose body: %w", err)
	}
	writeBase64(text, []byte(m.Body))

	for _, a := range m.Attachments {
		name := mime.QEncoding.Encode("utf-8", filepath.Base(a.Filename))
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ContentType(a.Filename) + `; name="` + name + `"`},
			"Content-Disposition":       {`attachment; filename="` + name + `"`},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, fmt.Errorf("mail: compose attachment %q: %w", a.Filename, err)
		}
		writeBase64(part, a.Data)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mail: compose: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBase64 writes data base64 encoded in 76 character lines.
func writeBase64(w io.Writer, data []byte) {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		_, _ = w.Write([]byte(enc[:76] + "\r\n"))
		enc = enc[76:]
	}
	_, _ = w.Write([]byte(enc + "\r\n"))
}

func messageID(from string, now time.Time) string {
	domain := "localhost"
	if i := strings.LastIndexByte(from, '@'); i >= 0 {
		domain = strings.Trim(from[i+1:], "> ")
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("<%d.%s@%s>", now.UnixNano(), hex.EncodeToString(b[:]), domain)
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

var _ Sender = LogSender{}

// Send logs a summary of m.
func (s LogSender) Send(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email not delivered: no transport configured",
		"to", m.To,
		"attachments", len(m.Attachments))
	return nil
}
