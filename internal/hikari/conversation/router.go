package conversation

import (
	"context"
	"errors"
	"strings"
)

// Command is a parsed slash command.
type Command struct {
	Name    string
	Args    []string
	RawText string
}

// ErrNotACommand is returned by Parse when the text does not start with the
// command prefix. Callers should use errors.Is to tell it apart from a
// malformed command.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// ErrEmptyCommand is returned for a bare prefix.
var ErrEmptyCommand = errors.New("empty command")

// handler runs with the user's session locked.
type handler func(ctx context.Context, t *turn, ev Event, cmd *Command) Reply

// router maps slash commands and callback data to handlers.
type router struct {
	prefix    string
	commands  map[string]handler
	callbacks map[string]handler
}

func newRouter(prefix string) *router {
	return &router{
		prefix:    prefix,
		commands:  make(map[string]handler),
		callbacks: make(map[string]handler),
	}
}

func (r *router) command(name string, h handler)  { r.commands[name] = h }
func (r *router) callback(data string, h handler) { r.callbacks[data] = h }

// Parse splits text into a command. Telegram's "/cmd@botname" form is
// accepted and the bot name dropped.
func (r *router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}
	text = strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil, ErrEmptyCommand
	}
	name, _, _ := strings.Cut(parts[0], "@")
	return &Command{
		Name:    strings.ToLower(name),
		Args:    parts[1:],
		RawText: text,
	}, nil
}

// routeText returns the handler for a registered slash command. Unknown
// commands are not routed so they fall through to the state's text handler.
func (r *router) routeText(text string) (handler, *Command, bool) {
	cmd, err := r.Parse(text)
	if err != nil {
		return nil, nil, false
	}
	h, ok := r.commands[cmd.Name]
	if !ok {
		return nil, nil, false
	}
	return h, cmd, true
}

func (r *router) routeCallback(data string) (handler, bool) {
	h, ok := r.callbacks[data]
	return h, ok
}
