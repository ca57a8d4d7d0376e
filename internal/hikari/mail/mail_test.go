package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/bdobrica/Hikari/internal/hikari/store"
)

func TestCompose_Plain(t *testing.T) {
	raw, err := Compose("bot@example.com", Message{To: "a@b.io", Subject: "Hi", Body: "line one\nline two"}, time.Unix(0, 0))
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "a@b.io", msg.Header.Get("To"))
	assert.Equal(t, "Hi", msg.Header.Get("Subject"))

	body, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, msg.Body))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", string(body))
}

func TestCompose_Attachments(t *testing.T) {
	raw, err := Compose("bot@example.com", Message{
		To:      "a@b.io",
		Subject: "Ünïcode",
		Body:    "see attached",
		Attachments: []Attachment{
			{Filename: "screenshot_abc.jpg", Data: []byte{0xff, 0xd8, 0xff}},
			{Filename: "notes.unknownext", Data: []byte("x")},
		},
	}, time.Now())
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Ünïcode", subject)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types, names []string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		ct, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
		types = append(types, ct)
		names = append(names, p.FileName())
	}
	assert.Equal(t, []string{"text/plain", "image/jpeg", "application/octet-stream"}, types)
	assert.Equal(t, []string{"", "screenshot_abc.jpg", "notes.unknownext"}, names)
}

func TestCompose_NoRecipient(t *testing.T) {
	_, err := Compose("bot@example.com", Message{Subject: "x"}, time.Now())
	require.ErrorIs(t, err, ErrNoRecipient)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("report.PDF"))
	assert.Equal(t, "application/octet-stream", ContentType("noext"))
}

// fakeSMTP accepts one session and records what it saw.
type fakeSMTP struct {
	addr string

	mu   sync.Mutex
	auth string
	rcpt string
	data string
}

func startFakeSMTP(t *testing.T, acceptAuth bool) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	f := &fakeSMTP{addr: ln.Addr().String()}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch verb {
			case "EHLO":
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 AUTH XOAUTH2")
			case "AUTH":
				f.mu.Lock()
				f.auth = strings.TrimPrefix(line, "AUTH XOAUTH2 ")
				f.mu.Unlock()
				if !acceptAuth {
					_ = tp.PrintfLine("535 bad credentials")
					continue
				}
				_ = tp.PrintfLine("235 accepted")
			case "MAIL":
				_ = tp.PrintfLine("250 ok")
			case "RCPT":
				f.mu.Lock()
				f.rcpt = line
				f.mu.Unlock()
				_ = tp.PrintfLine("250 ok")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				b, err := io.ReadAll(tp.DotReader())
				if err != nil {
					return
				}
				f.mu.Lock()
				f.data = string(b)
				f.mu.Unlock()
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 unsupported")
			}
		}
	}()
	return f
}

func (f *fakeSMTP) snapshot() (auth, rcpt, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth, f.rcpt, f.data
}

func newTestGmail(t *testing.T, addr string) *GmailSender {
	t.Helper()
	g, err := NewGmailSender(GmailConfig{
		From:            "bot@example.com",
		Addr:            addr,
		DisableStartTLS: true,
		Timeout:         5 * time.Second,
		TokenSource:     oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access-123"}),
	}, nil)
	require.NoError(t, err)
	return g
}

func TestGmailSender_Send(t *testing.T) {
	srv := startFakeSMTP(t, true)
	g := newTestGmail(t, srv.addr)

	err := g.Send(context.Background(), Message{To: "someone@example.org", Subject: "S", Body: "B"})
	require.NoError(t, err)

	auth, rcpt, data := srv.snapshot()
	decoded, err := base64.StdEncoding.DecodeString(auth)
	require.NoError(t, err)
	assert.Equal(t, "user=bot@example.com\x01auth=Bearer access-123\x01\x01", string(decoded))
	assert.Equal(t, "RCPT TO:<someone@example.org>", rcpt)
	assert.Contains(t, data, "Subject: S")
}

func TestGmailSender_AuthRejected(t *testing.T) {
	srv := startFakeSMTP(t, false)
	g := newTestGmail(t, srv.addr)

	err := g.Send(context.Background(), Message{To: "someone@example.org", Subject: "S", Body: "B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail: auth")
}

func TestNewGmailSender_RequiresCredentials(t *testing.T) {
	_, err := NewGmailSender(GmailConfig{From: "bot@example.com"}, nil)
	require.Error(t, err)
	assert.True(t, GmailConfig{From: "a@b.c", ClientID: "id", ClientSecret: "s", RefreshToken: "r"}.Configured())
}

type stubSender struct{ err error }

func (s stubSender) Send(context.Context, Message) error { return s.err }

func TestAuditedSender(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	ok := &AuditedSender{Next: stubSender{}, Audit: st}
	require.NoError(t, ok.Send(ctx, Message{UserID: "42", To: "a@b.io", Subject: "first"}))

	failing := &AuditedSender{Next: stubSender{err: errors.New("smtp down")}, Audit: st}
	require.Error(t, failing.Send(ctx, Message{UserID: "42", To: "a@b.io", Subject: "second", Attachments: []Attachment{{Filename: "f"}}}))

	rows, err := st.ListEmailSends(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, store.EmailStatusFailed, rows[0].Status)
	assert.Equal(t, "smtp down", rows[0].Error)
	assert.Equal(t, 1, rows[0].Attachments)
	assert.Equal(t, store.EmailStatusSent, rows[1].Status)
}

func TestLogSender(t *testing.T) {
	require.NoError(t, LogSender{}.Send(context.Background(), Message{To: "a@b.io"}))
	require.ErrorIs(t, LogSender{}.Send(context.Background(), Message{}), ErrNoRecipient)
}

