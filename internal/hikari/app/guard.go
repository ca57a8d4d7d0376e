package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bdobrica/Hikari/internal/hikari/conversation"
	"github.com/bdobrica/Hikari/internal/hikari/observability"
)

const noAccessText = "⛔ You do not have access to this bot."

// Guard drops events from users outside the allow-list before they reach
// the state machine, so strangers never get a session.
type Guard struct {
	allowed map[string]bool
	next    conversation.Handler
	logger  *slog.Logger
}

var _ conversation.Handler = (*Guard)(nil)

// NewGuard wraps next with an allow-list check.
func NewGuard(allowed []string, next conversation.Handler, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]bool, len(allowed))
	for _, u := range allowed {
		if u = strings.TrimSpace(u); u != "" {
			set[u] = true
		}
	}
	return &Guard{allowed: set, next: next, logger: logger}
}

// Allowed reports whether user may talk to the bot.
func (g *Guard) Allowed(user conversation.UserID) bool {
	return g.allowed[string(user)]
}

func (g *Guard) Handle(ctx context.Context, ev conversation.Event) conversation.Reply {
	if g.Allowed(ev.User) {
		return g.next.Handle(ctx, ev)
	}
	observability.LoggerWithTrace(ctx, g.logger).Warn("access denied", "user", ev.User)
	if ev.Callback != "" {
		return conversation.Reply{Notice: noAccessText}
	}
	return conversation.Reply{Text: noAccessText}
}
