package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Defaults for GmailConfig.
const (
	DefaultGmailAddr    = "smtp.gmail.com:587"
	DefaultGmailTimeout = 30 * time.Second
	gmailScope          = "https://mail.google.com/"
)

// GmailConfig configures a GmailSender.
type GmailConfig struct {
	From         string
	ClientID     string
	ClientSecret string
	RefreshToken string

	// Addr is the SMTP submission endpoint.
	Addr string
	// DisableStartTLS skips STARTTLS. Only meant for local test servers.
	DisableStartTLS bool
	Timeout         time.Duration

	// TokenSource overrides the refresh-token flow built from the client
	// credentials above.
	TokenSource oauth2.TokenSource
}

// Configured reports whether enough is set to build a sender.
func (c GmailConfig) Configured() bool {
	if c.From == "" {
		return false
	}
	return c.TokenSource != nil || (c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "")
}

// GmailSender submits mail over SMTP authenticated with XOAUTH2.
type GmailSender struct {
	from     string
	addr     string
	host     string
	startTLS bool
	timeout  time.Duration
	tokens   oauth2.TokenSource
	logger   *slog.Logger
}

var _ Sender = (*GmailSender)(nil)

// NewGmailSender builds a sender. The refresh token is exchanged lazily and
// access tokens are reused until they expire.
func NewGmailSender(cfg GmailConfig, logger *slog.Logger) (*GmailSender, error) {
	if !cfg.Configured() {
		return nil, errors.New("mail: gmail sender needs a from address and oauth credentials")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultGmailAddr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGmailTimeout
	}
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("mail: invalid smtp address %q: %w", cfg.Addr, err)
	}

	ts := cfg.TokenSource
	if ts == nil {
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoints.Google,
			Scopes:       []string{gmailScope},
		}
		ts = oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
	}

	return &GmailSender{
		from:     cfg.From,
		addr:     cfg.Addr,
		host:     host,
		startTLS: !cfg.DisableStartTLS,
		timeout:  cfg.Timeout,
		tokens:   oauth2.ReuseTokenSource(nil, ts),
		logger:   logger,
	}, nil
}

// Send delivers m.
func (g *GmailSender) Send(ctx context.Context, m Message) error {
	body, err := Compose(g.from, m, time.Now())
	if err != nil {
		return err
	}
	tok, err := g.tokens.Token()
	if err != nil {
		return fmt.Errorf("mail: refresh oauth token: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", g.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, g.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: smtp handshake: %w", err)
	}
	defer c.Close()

	if g.startTLS {
		if err := c.StartTLS(&tls.Config{ServerName: g.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if err := c.Auth(&xoauth2{user: g.from, token: tok.AccessToken}); err != nil {
		return fmt.Errorf("mail: auth: %w", err)
	}
	if err := c.Mail(g.from); err != nil {
		return fmt.Errorf("mail: mail from: %w", err)
	}
	if err := c.Rcpt(strings.TrimSpace(m.To)); err != nil {
		return fmt.Errorf("mail: rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mail: data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("mail: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: end data: %w", err)
	}
	if err := c.Quit(); err != nil {
		g.logger.Debug("smtp quit failed", "err", err)
	}
	g.logger.InfoContext(ctx, "email sent", "attachments", len(m.Attachments), "bytes", len(body))
	return nil
}

// xoauth2 implements the SASL XOAUTH2 mechanism used by Gmail.
type xoauth2 struct {
	user  string
	token string
}

func (a *xoauth2) Start(*smtp.ServerInfo) (string, []byte, error) {
	return "XOAUTH2", []byte("user=" + a.user + "\x01auth=Bearer " + a.token + "\x01\x01"), nil
}

// Next answers the server's error challenge with an empty response so the
// server reports the failure as a final status.
func (a *xoauth2) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		return []byte{}, nil
	}
	return nil, nil
}
