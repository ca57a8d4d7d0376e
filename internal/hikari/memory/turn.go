package memory

import "strings"

// Roles used in session turns and long-term submissions.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	userPrefix      = "User: "
	assistantPrefix = "Assistant: "
)

// Turn is one side of a dialogue exchange.
type Turn struct {
	Role string
	Text string
}

// countExchanges returns the number of user turns in turns; an exchange
// starts with the user speaking.
func countExchanges(turns []Turn) int {
	n := 0
	for _, t := range turns {
		if t.Role == RoleUser {
			n++
		}
	}
	return n
}

// formatTurns renders turns as "User: …" / "Assistant: …" lines.
func formatTurns(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch t.Role {
		case RoleUser:
			b.WriteString(userPrefix)
		case RoleAssistant:
			b.WriteString(assistantPrefix)
		default:
			b.WriteString(t.Role + ": ")
		}
		b.WriteString(t.Text)
	}
	return b.String()
}
