package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bdobrica/Hikari/internal/hikari/mail"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// splitDraft splits text into subject (first line) and body (the rest).
// ok is false when there are fewer than two lines.
func splitDraft(text string) (subject, body string, ok bool) {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	subject, body, found := strings.Cut(text, "\n")
	if !found {
		return "", "", false
	}
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" || body == "" {
		return "", "", false
	}
	return subject, body, true
}

func (m *Machine) recipient(d EmailDraft) string {
	if d.Recipient != "" {
		return d.Recipient
	}
	return m.cfg.DefaultRecipient
}

func (m *Machine) displayRecipient(d EmailDraft) string {
	if r := m.recipient(d); r != "" {
		return r
	}
	return "(not set)"
}

func (m *Machine) emailBanner(t *turn) Reply {
	d := t.sess.Draft
	return Reply{
		Text:    fmt.Sprintf(emailBannerText, m.displayRecipient(d), len(d.Attachments)),
		Buttons: emailButtons(),
	}
}

func (m *Machine) enterRecipient(t *turn, text string) Reply {
	addr := strings.TrimSpace(text)
	if !ValidEmail(addr) {
		return Reply{Text: invalidEmailText, Buttons: recipientButtons()}
	}
	t.sess.Draft.Recipient = addr
	t.sess.State = EmailEnteringDraft
	return Reply{Text: fmt.Sprintf(recipientSavedText, addr), Buttons: emailButtons()}
}

func (m *Machine) enterDraft(ctx context.Context, t *turn, text string) Reply {
	if t.sess.sending {
		return Reply{Text: sendingPendingText, Buttons: emailButtons()}
	}
	subject, body, ok := splitDraft(text)
	if !ok {
		return Reply{Text: invalidFormatText, Buttons: emailButtons()}
	}
	return m.send(ctx, t, subject, body, 0)
}

func (m *Machine) attachMedia(ctx context.Context, t *turn, md *Media) Reply {
	var subject, body string
	caption := strings.TrimSpace(md.Caption)
	if caption != "" && !t.sess.sending {
		var ok bool
		if subject, body, ok = splitDraft(caption); !ok {
			return Reply{Text: invalidFormatText, Buttons: emailButtons()}
		}
	}

	data, err := download(ctx, md)
	if err != nil {
		t.logger.Warn("attachment download failed", "kind", md.Kind.String(), "err", err)
		return Reply{Text: fmt.Sprintf(downloadFailedText, err), Buttons: emailButtons()}
	}
	name := md.name()
	t.sess.Draft.Attachments = append(t.sess.Draft.Attachments, Attachment{Filename: name, Data: data})

	if t.sess.sending {
		return Reply{Text: fmt.Sprintf(attachedPendingText, name)}
	}
	if subject == "" {
		return Reply{Text: fmt.Sprintf(attachedText, name), Buttons: emailButtons()}
	}
	return m.send(ctx, t, subject, body, m.cfg.SendDelay)
}

// send stores subject and body in the draft, waits delay with the lock
// released, then sends whatever the draft holds at that point.
func (m *Machine) send(ctx context.Context, t *turn, subject, body string, delay time.Duration) Reply {
	if m.recipient(t.sess.Draft) == "" {
		return Reply{Text: noRecipientText, Buttons: emailButtons()}
	}
	if m.deps.Mailer == nil {
		return Reply{Text: fmt.Sprintf(notConfiguredText, "Email"), Buttons: backButtons()}
	}

	t.sess.Draft.Subject = subject
	t.sess.Draft.Body = body
	t.sess.sending = true
	if delay > 0 {
		if err := t.wait(ctx, delay); err != nil {
			t.sess.sending = false
			t.logger.Info("email send abandoned", "err", err)
			return Reply{Text: sendCancelledText, Buttons: emailButtons()}
		}
	}
	defer func() { t.sess.sending = false }()

	d := t.sess.Draft
	if d.Subject == "" {
		return Reply{Text: sendCancelledText, Buttons: emailButtons()}
	}
	msg := mail.Message{
		UserID:      string(t.user),
		To:          m.recipient(d),
		Subject:     d.Subject,
		Body:        d.Body,
		Attachments: append([]Attachment(nil), d.Attachments...),
	}
	if err := m.deps.Mailer.Send(ctx, msg); err != nil {
		t.logger.Warn("email send failed", "attachments", len(msg.Attachments), "err", err)
		t.sess.Draft.Subject = ""
		t.sess.Draft.Body = ""
		return Reply{Text: fmt.Sprintf(sendFailedText, userError(err)), Buttons: emailButtons()}
	}

	t.logger.Info("email sent", "attachments", len(msg.Attachments))
	t.sess.Draft.reset()
	if n := len(msg.Attachments); n > 0 {
		return Reply{Text: fmt.Sprintf(sentWithFilesText, n), Buttons: emailButtons()}
	}
	return Reply{Text: sentText, Buttons: emailButtons()}
}

func (m *Machine) onReset(t *turn) Reply {
	t.sess.Draft.reset()
	if !t.sess.State.InEmail() {
		return Reply{Text: draftResetText, Buttons: backButtons()}
	}
	t.sess.State = EmailEnteringDraft
	return Reply{Text: draftResetText, Buttons: emailButtons(), Notice: "Draft cleared"}
}

func (m *Machine) recipientMenu(t *turn) Reply {
	if !t.sess.State.InEmail() {
		return Reply{Text: fmt.Sprintf(safetyNetText, t.sess.State.label())}
	}
	return Reply{Text: fmt.Sprintf(recipientMenuText, m.displayRecipient(t.sess.Draft)), Buttons: recipientButtons()}
}

func (m *Machine) editRecipient(t *turn) Reply {
	if !t.sess.State.InEmail() {
		return Reply{Text: fmt.Sprintf(safetyNetText, t.sess.State.label())}
	}
	t.sess.State = EmailEnteringRecipient
	return Reply{Text: recipientPromptText, Buttons: recipientButtons()}
}

func (m *Machine) resetRecipient(t *turn) Reply {
	if !t.sess.State.InEmail() {
		return Reply{Text: fmt.Sprintf(safetyNetText, t.sess.State.label())}
	}
	if t.sess.Draft.Recipient == "" {
		return Reply{Notice: recipientSameNotice}
	}
	t.sess.Draft.Recipient = ""
	t.sess.State = EmailEnteringDraft
	return Reply{Text: fmt.Sprintf(recipientResetText, m.displayRecipient(t.sess.Draft)), Buttons: emailButtons()}
}

func (m *Machine) backToEmailMenu(t *turn) Reply {
	if !t.sess.State.InEmail() {
		return Reply{Text: fmt.Sprintf(safetyNetText, t.sess.State.label())}
	}
	t.sess.State = EmailEnteringDraft
	return m.emailBanner(t)
}

func (m *Machine) showAttachments(t *turn) Reply {
	files := t.sess.Draft.Attachments
	if len(files) == 0 {
		return Reply{Text: attachmentsEmptyText, Buttons: emailButtons()}
	}
	lines := make([]string, len(files))
	for i, f := range files {
		lines[i] = fmt.Sprintf("%d. %s", i+1, f.Filename)
	}
	return Reply{Text: fmt.Sprintf(attachmentsListText, len(files), strings.Join(lines, "\n")), Buttons: emailButtons()}
}

func download(ctx context.Context, md *Media) ([]byte, error) {
	if md.Download == nil {
		return nil, errors.New("no content")
	}
	return md.Download(ctx)
}

// userError renders err for a chat message.
func userError(err error) string {
	var msg string
	if errors.Is(err, mail.ErrNoRecipient) {
		msg = "no recipient"
	} else {
		msg = err.Error()
	}
	return truncate(msg, 200)
}
