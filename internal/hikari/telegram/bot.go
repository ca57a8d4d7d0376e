package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bdobrica/Hikari/common/trace"
	"github.com/bdobrica/Hikari/internal/hikari/conversation"
	"github.com/bdobrica/Hikari/internal/hikari/observability"
)

const (
	// MaxMessageRunes is the Bot API limit on message text.
	MaxMessageRunes = 4096
	// DefaultMaxDownloadBytes is the Bot API getFile ceiling.
	DefaultMaxDownloadBytes = 20 << 20
	DefaultPollTimeout      = 30 * time.Second
)

// Config configures a Bot.
type Config struct {
	Token            string
	BaseURL          string
	PollTimeout      time.Duration
	MaxDownloadBytes int64
	HTTPClient       *http.Client
}

// Bot long-polls getUpdates and dispatches each update to a Handler on its
// own goroutine. Ordering per user is the handler's concern.
type Bot struct {
	api     *Client
	handler conversation.Handler
	cfg     Config
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewBot returns a Bot.
func NewBot(cfg Config, h conversation.Handler, logger *slog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if h == nil {
		return nil, errors.New("telegram: handler is required")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:     NewClient(cfg.HTTPClient, cfg.BaseURL, cfg.Token),
		handler: h,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// API exposes the underlying client.
func (b *Bot) API() *Client { return b.api }

// Run polls until ctx is cancelled, then waits for in-flight updates.
func (b *Bot) Run(ctx context.Context) error {
	if me, err := b.api.GetMe(ctx); err != nil {
		b.logger.Warn("telegram getMe failed", "err", err)
	} else {
		b.logger.Info("telegram bot connected", "username", me.Username, "id", me.ID)
	}

	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	backoff := backoffMin
	var offset int64

	defer b.wg.Wait()
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := b.api.GetUpdates(ctx, offset, b.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Error("telegram poll failed; retrying", "err", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, backoffMax)
			continue
		}
		backoff = backoffMin

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.wg.Add(1)
			go func(u Update) {
				defer b.wg.Done()
				b.dispatch(ctx, u)
			}(u)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, u Update) {
	ctx = trace.Ensure(ctx)
	logger := observability.LoggerWithTrace(ctx, b.logger).With("update_id", u.UpdateID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("telegram update panicked", "panic", fmt.Sprint(r))
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, logger, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, logger, u.Message)
	}
}

func (b *Bot) handleCallback(ctx context.Context, logger *slog.Logger, q *CallbackQuery) {
	ev := conversation.Event{
		User:     conversation.UserID(strconv.FormatInt(q.From.ID, 10)),
		Callback: q.Data,
	}
	if q.Message != nil {
		ev.Chat = strconv.FormatInt(q.Message.Chat.ID, 10)
	}
	reply := b.handler.Handle(ctx, ev)

	if err := b.api.AnswerCallbackQuery(ctx, q.ID, reply.Notice); err != nil {
		logger.Warn("telegram answerCallbackQuery failed", "err", err)
	}
	if reply.Text == "" || q.Message == nil {
		return
	}
	chunks := Chunk(reply.Text, MaxMessageRunes)
	markup := keyboard(reply.Buttons)
	first := markup
	if len(chunks) > 1 {
		first = nil
	}
	err := b.api.EditMessageText(ctx, q.Message.Chat.ID, q.Message.MessageID, chunks[0], first)
	var apiErr *APIError
	switch {
	case err == nil, errors.As(err, &apiErr) && apiErr.NotModified():
	default:
		logger.Debug("telegram edit failed; sending instead", "err", err)
		b.sendChunks(ctx, logger, q.Message.Chat.ID, chunks, markup)
		return
	}
	if len(chunks) > 1 {
		b.sendChunks(ctx, logger, q.Message.Chat.ID, chunks[1:], markup)
	}
}

func (b *Bot) handleMessage(ctx context.Context, logger *slog.Logger, msg *Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	ev, ok := b.Event(msg)
	if !ok {
		return
	}
	chatID := msg.Chat.ID

	// The placeholder is sent on the first progress report and edited on
	// later ones and with the final reply.
	var (
		mu          sync.Mutex
		placeholder int64
	)
	ctx = conversation.WithProgress(ctx, func(text string) {
		mu.Lock()
		defer mu.Unlock()
		if placeholder == 0 {
			id, err := b.api.SendMessage(ctx, chatID, text, nil)
			if err != nil {
				logger.Warn("telegram progress send failed", "err", err)
				return
			}
			placeholder = id
			return
		}
		if err := b.api.EditMessageText(ctx, chatID, placeholder, text, nil); err != nil {
			logger.Debug("telegram progress edit failed", "err", err)
		}
	})

	reply := b.handler.Handle(ctx, ev)
	if reply.Text == "" {
		return
	}

	mu.Lock()
	pid := placeholder
	mu.Unlock()

	chunks := Chunk(reply.Text, MaxMessageRunes)
	markup := keyboard(reply.Buttons)
	if pid != 0 {
		first := markup
		if len(chunks) > 1 {
			first = nil
		}
		if err := b.api.EditMessageText(ctx, chatID, pid, chunks[0], first); err == nil {
			chunks = chunks[1:]
		} else {
			logger.Debug("telegram placeholder edit failed", "err", err)
		}
	}
	b.sendChunks(ctx, logger, chatID, chunks, markup)
}

// sendChunks sends each chunk, attaching markup to the last one.
func (b *Bot) sendChunks(ctx context.Context, logger *slog.Logger, chatID int64, chunks []string, markup *InlineKeyboardMarkup) {
	for i, c := range chunks {
		var m *InlineKeyboardMarkup
		if i == len(chunks)-1 {
			m = markup
		}
		if _, err := b.api.SendMessage(ctx, chatID, c, m); err != nil {
			logger.Error("telegram sendMessage failed", "err", err, "chat_id", chatID)
			return
		}
	}
}

// Event maps a message onto a conversation event. Messages with neither
// text nor media are dropped.
func (b *Bot) Event(msg *Message) (conversation.Event, bool) {
	ev := conversation.Event{
		Chat: strconv.FormatInt(msg.Chat.ID, 10),
	}
	if msg.From != nil {
		ev.User = conversation.UserID(strconv.FormatInt(msg.From.ID, 10))
	}
	if md := b.media(msg); md != nil {
		ev.Media = md
		return ev, true
	}
	if msg.Text == "" {
		return ev, false
	}
	ev.Text = msg.Text
	return ev, true
}

func (b *Bot) media(msg *Message) *conversation.Media {
	var md conversation.Media
	switch {
	case msg.Voice != nil:
		md = conversation.Media{Kind: conversation.MediaVoice, FileID: msg.Voice.FileID, UniqueID: msg.Voice.FileUniqueID, MIME: msg.Voice.MimeType, Size: msg.Voice.FileSize}
	case msg.Audio != nil:
		md = conversation.Media{Kind: conversation.MediaAudio, FileID: msg.Audio.FileID, UniqueID: msg.Audio.FileUniqueID, Filename: msg.Audio.FileName, MIME: msg.Audio.MimeType, Size: msg.Audio.FileSize}
	case msg.VideoNote != nil:
		md = conversation.Media{Kind: conversation.MediaVideoNote, FileID: msg.VideoNote.FileID, UniqueID: msg.VideoNote.FileUniqueID, Size: msg.VideoNote.FileSize}
	case msg.Video != nil:
		md = conversation.Media{Kind: conversation.MediaVideo, FileID: msg.Video.FileID, UniqueID: msg.Video.FileUniqueID, Filename: msg.Video.FileName, MIME: msg.Video.MimeType, Size: msg.Video.FileSize}
	case msg.Document != nil:
		md = conversation.Media{Kind: conversation.MediaDocument, FileID: msg.Document.FileID, UniqueID: msg.Document.FileUniqueID, Filename: msg.Document.FileName, MIME: msg.Document.MimeType, Size: msg.Document.FileSize}
	case len(msg.Photo) > 0:
		p := largest(msg.Photo)
		md = conversation.Media{Kind: conversation.MediaPhoto, FileID: p.FileID, UniqueID: p.FileUniqueID, MIME: "image/jpeg", Size: p.FileSize}
	case msg.Sticker != nil:
		md = conversation.Media{Kind: conversation.MediaSticker, FileID: msg.Sticker.FileID, UniqueID: msg.Sticker.FileUniqueID}
	default:
		return nil
	}
	md.Caption = msg.Caption
	fileID, limit := md.FileID, b.cfg.MaxDownloadBytes
	md.Download = func(ctx context.Context) ([]byte, error) {
		return b.api.DownloadFile(ctx, fileID, limit)
	}
	return &md
}

func largest(sizes []PhotoSize) PhotoSize {
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}

func keyboard(rows [][]conversation.Button) *InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := &InlineKeyboardMarkup{InlineKeyboard: make([][]InlineKeyboardButton, 0, len(rows))}
	for _, r := range rows {
		btns := make([]InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			btns = append(btns, InlineKeyboardButton{Text: b.Label, CallbackData: b.Data})
		}
		out.InlineKeyboard = append(out.InlineKeyboard, btns)
	}
	return out
}

// Chunk splits s into pieces of at most n runes, preferring to break after
// a newline in the second half of a piece.
func Chunk(s string, n int) []string {
	if utf8.RuneCountInString(s) <= n {
		return []string{s}
	}
	var out []string
	runes := []rune(s)
	for len(runes) > n {
		cut := n
		for i := n - 1; i > n/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
