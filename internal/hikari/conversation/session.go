package conversation

import (
	"sync"

	"github.com/bdobrica/Hikari/internal/hikari/mail"
)

// Attachment is a file accumulated in an email draft.
type Attachment = mail.Attachment

// EmailDraft is an email being composed. An empty Recipient means the
// configured default.
type EmailDraft struct {
	Recipient   string
	Attachments []Attachment
	Subject     string
	Body        string
}

// reset clears everything except the recipient.
func (d *EmailDraft) reset() {
	d.Attachments = nil
	d.Subject = ""
	d.Body = ""
}

// UserSession is the mutable per-user conversation state.
type UserSession struct {
	State State
	Draft EmailDraft
	// Chat is the last chat the user wrote from.
	Chat string

	sending bool
}

// Sending reports whether a delayed email send is in flight.
func (s *UserSession) Sending() bool { return s.sending }

type sessionEntry struct {
	mu   sync.Mutex
	sess UserSession
}

// Sessions owns every user's UserSession. Access goes through a per-user
// lock so handlers for one user are serialized while different users run in
// parallel.
type Sessions struct {
	mu    sync.Mutex
	users map[UserID]*sessionEntry
}

// NewSessions returns an empty store.
func NewSessions() *Sessions {
	return &Sessions{users: make(map[UserID]*sessionEntry)}
}

func (s *Sessions) entry(u UserID) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.users[u]
	if !ok {
		e = &sessionEntry{}
		s.users[u] = e
	}
	return e
}

// Lock acquires u's lock and returns the session with its unlock func. The
// session is created in Idle on first use. The pointer stays valid for the
// lifetime of the store but must only be touched while locked.
func (s *Sessions) Lock(u UserID) (*UserSession, func()) {
	e := s.entry(u)
	e.mu.Lock()
	return &e.sess, e.mu.Unlock
}

// Snapshot returns a copy of u's session. Attachment data is shared.
func (s *Sessions) Snapshot(u UserID) UserSession {
	sess, unlock := s.Lock(u)
	defer unlock()
	cp := *sess
	cp.Draft.Attachments = append([]Attachment(nil), sess.Draft.Attachments...)
	return cp
}

// Len returns the number of known users.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
