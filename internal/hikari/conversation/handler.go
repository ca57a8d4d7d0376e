package conversation

import "context"

// Handler turns an inbound event into a reply. Transports depend on this
// rather than on *Machine so access checks can wrap it.
type Handler interface {
	Handle(ctx context.Context, ev Event) Reply
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) Reply

func (f HandlerFunc) Handle(ctx context.Context, ev Event) Reply { return f(ctx, ev) }

var _ Handler = (*Machine)(nil)
