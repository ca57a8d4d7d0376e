// Package matrix is an alternative transport that serves the conversation
// machine over a Matrix account. Inline buttons have no Matrix equivalent,
// so replies list them as "!data" commands and a message of that form is
// treated as a button press.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Hikari/common/trace"
	"github.com/bdobrica/Hikari/internal/hikari/conversation"
	"github.com/bdobrica/Hikari/internal/hikari/observability"
)

// CallbackPrefix marks a message as a button press.
const CallbackPrefix = "!"

const defaultMaxDownloadBytes = 25 << 20

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms are joined on start. When non-empty, events from other rooms
	// are ignored.
	Rooms []string
	// DB persists the sync token. Nil keeps it in memory, so history
	// replays on restart.
	DB               *sql.DB
	MaxDownloadBytes int64
}

// Client wraps a mautrix client.
type Client struct {
	client  *mautrix.Client
	cfg     Config
	handler conversation.Handler
	logger  *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a client. Start begins syncing.
func New(cfg Config, h conversation.Handler, logger *slog.Logger) (*Client, error) {
	if h == nil {
		return nil, errors.New("matrix: handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = defaultMaxDownloadBytes
	}
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}
	if cfg.DB != nil {
		client.Store = NewSyncStore(cfg.DB)
	} else {
		logger.Warn("matrix sync token kept in memory; history will replay on restart")
	}
	return &Client{
		client:  client,
		cfg:     cfg,
		handler: h,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start joins the configured rooms and syncs in the background until Stop
// or ctx cancellation.
func (c *Client) Start(ctx context.Context) error {
	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("matrix: unexpected syncer type")
	}
	syncer.OnEventType(event.EventMessage, c.onMessage)

	for _, room := range c.cfg.Rooms {
		if err := c.join(ctx, id.RoomID(room)); err != nil {
			return fmt.Errorf("matrix: join %s: %w", room, err)
		}
	}

	go c.syncLoop(ctx)
	return nil
}

func (c *Client) syncLoop(ctx context.Context) {
	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	backoff := backoffMin
	for {
		err := c.client.SyncWithContext(ctx)
		if err == nil || ctx.Err() != nil || c.stopped() {
			return
		}
		c.logger.Error("matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffMax)
	}
}

func (c *Client) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Stop ends syncing and waits for in-flight events.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.client.StopSync()
	})
	c.wg.Wait()
}

func (c *Client) join(ctx context.Context, room id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, room)
	if errors.Is(err, mautrix.MForbidden) {
		c.logger.Warn("matrix join forbidden or already a member; continuing", "room", room)
		return nil
	}
	return err
}

func (c *Client) allowedRoom(room id.RoomID) bool {
	if len(c.cfg.Rooms) == 0 {
		return true
	}
	for _, r := range c.cfg.Rooms {
		if r == room.String() {
			return true
		}
	}
	return false
}

// onMessage runs on the sync goroutine, so the handler is called on a
// separate one to keep a slow turn from stalling the sync.
func (c *Client) onMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.cfg.UserID) || !c.allowedRoom(evt.RoomID) {
		return
	}
	ev, ok := c.Event(evt)
	if !ok {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.dispatch(context.WithoutCancel(ctx), evt.RoomID, ev)
	}()
}

func (c *Client) dispatch(ctx context.Context, room id.RoomID, ev conversation.Event) {
	ctx = trace.Ensure(ctx)
	logger := observability.LoggerWithTrace(ctx, c.logger).With("room", room.String())

	var (
		mu          sync.Mutex
		placeholder id.EventID
	)
	ctx = conversation.WithProgress(ctx, func(text string) {
		mu.Lock()
		defer mu.Unlock()
		if placeholder == "" {
			resp, err := c.client.SendMessageEvent(ctx, room, event.EventMessage, &event.MessageEventContent{MsgType: event.MsgNotice, Body: text})
			if err != nil {
				logger.Warn("matrix progress send failed", "err", err)
				return
			}
			placeholder = resp.EventID
			return
		}
		if err := c.edit(ctx, room, placeholder, text); err != nil {
			logger.Debug("matrix progress edit failed", "err", err)
		}
	})

	reply := c.handler.Handle(ctx, ev)
	body := Render(reply)
	if body == "" {
		return
	}

	mu.Lock()
	pid := placeholder
	mu.Unlock()
	if pid != "" {
		if err := c.edit(ctx, room, pid, body); err == nil {
			return
		}
	}
	content := &event.MessageEventContent{MsgType: event.MsgText, Body: body}
	if reply.Text == "" {
		content.MsgType = event.MsgNotice
	}
	if _, err := c.client.SendMessageEvent(ctx, room, event.EventMessage, content); err != nil {
		logger.Error("matrix send failed", "err", err)
	}
}

func (c *Client) edit(ctx context.Context, room id.RoomID, target id.EventID, text string) error {
	content := &event.MessageEventContent{
		MsgType:    event.MsgText,
		Body:       "* " + text,
		NewContent: &event.MessageEventContent{MsgType: event.MsgText, Body: text},
		RelatesTo:  &event.RelatesTo{Type: event.RelReplace, EventID: target},
	}
	_, err := c.client.SendMessageEvent(ctx, room, event.EventMessage, content)
	return err
}

// Event maps a room message onto a conversation event.
func (c *Client) Event(evt *event.Event) (conversation.Event, bool) {
	msg := evt.Content.AsMessage()
	if msg == nil {
		return conversation.Event{}, false
	}
	ev := conversation.Event{
		User: conversation.UserID(evt.Sender.String()),
		Chat: evt.RoomID.String(),
	}
	// Edits are not new input.
	if msg.RelatesTo != nil && msg.RelatesTo.Type == event.RelReplace {
		return ev, false
	}

	switch msg.MsgType {
	case event.MsgText:
		body := strings.TrimSpace(msg.Body)
		if data, ok := strings.CutPrefix(body, CallbackPrefix); ok && data != "" && !strings.ContainsAny(data, " \n") {
			ev.Callback = data
			return ev, true
		}
		if body == "" {
			return ev, false
		}
		ev.Text = msg.Body
		return ev, true
	case event.MsgImage, event.MsgAudio, event.MsgVideo, event.MsgFile:
		ev.Media = c.media(msg)
		return ev, ev.Media != nil
	default:
		return ev, false
	}
}

func (c *Client) media(msg *event.MessageEventContent) *conversation.Media {
	uri, err := msg.URL.Parse()
	if err != nil {
		// Encrypted attachments carry their URL in File, which is not supported.
		return nil
	}
	md := &conversation.Media{FileID: uri.String(), UniqueID: uri.FileID}
	switch msg.MsgType {
	case event.MsgImage:
		md.Kind = conversation.MediaPhoto
	case event.MsgAudio:
		md.Kind = conversation.MediaAudio
		if msg.MSC3245Voice != nil {
			md.Kind = conversation.MediaVoice
		}
	case event.MsgVideo:
		md.Kind = conversation.MediaVideo
	default:
		md.Kind = conversation.MediaDocument
	}

	// With an explicit filename the body is a caption.
	md.Filename = msg.Body
	if msg.FileName != "" {
		md.Filename = msg.FileName
		if msg.Body != msg.FileName {
			md.Caption = msg.Body
		}
	}
	if md.Kind == conversation.MediaVoice {
		md.Filename = ""
	}
	if msg.Info != nil {
		md.MIME = msg.Info.MimeType
		md.Size = int64(msg.Info.Size)
	}

	limit := c.cfg.MaxDownloadBytes
	md.Download = func(ctx context.Context) ([]byte, error) {
		if md.Size > limit {
			return nil, fmt.Errorf("matrix: file too large (%d > %d bytes)", md.Size, limit)
		}
		data, err := c.client.DownloadBytes(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("matrix: download: %w", err)
		}
		if int64(len(data)) > limit {
			return nil, fmt.Errorf("matrix: file too large (%d > %d bytes)", len(data), limit)
		}
		return data, nil
	}
	return md
}

// Render flattens a reply to plain text, listing buttons as commands. A
// reply that only carries a notice renders as the notice.
func Render(r conversation.Reply) string {
	text := r.Text
	if text == "" {
		return r.Notice
	}
	var b strings.Builder
	b.WriteString(text)
	for i, row := range r.Buttons {
		if i == 0 {
			b.WriteString("\n")
		}
		for _, btn := range row {
			fmt.Fprintf(&b, "\n%s%s  %s", CallbackPrefix, btn.Data, btn.Label)
		}
	}
	return b.String()
}
