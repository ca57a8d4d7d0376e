// Package conversation implements the per-user state machine that turns
// inbound messages and button presses into module actions and replies.
package conversation

import "fmt"

// UserID identifies a user across transports. Telegram ids are formatted in
// base 10.
type UserID string

// State is where a user currently is in the conversation.
type State int

const (
	Idle State = iota
	EmailEnteringRecipient
	EmailEnteringDraft
	ChatActive
	AudioWaiting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case EmailEnteringRecipient:
		return "email.recipient"
	case EmailEnteringDraft:
		return "email.draft"
	case ChatActive:
		return "chat"
	case AudioWaiting:
		return "audio"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InEmail reports whether s belongs to the email compose super-state.
func (s State) InEmail() bool {
	return s == EmailEnteringRecipient || s == EmailEnteringDraft
}

// label is the human name of the mode s belongs to.
func (s State) label() string {
	switch {
	case s.InEmail():
		return "email"
	case s == ChatActive:
		return "chat"
	case s == AudioWaiting:
		return "transcription"
	default:
		return "menu"
	}
}
