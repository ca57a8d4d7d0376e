package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/Hikari/internal/hikari/llm"
	"github.com/bdobrica/Hikari/internal/hikari/mail"
	"github.com/bdobrica/Hikari/internal/hikari/memory"
	"github.com/bdobrica/Hikari/internal/hikari/modules"
	"github.com/bdobrica/Hikari/internal/hikari/observability"
	"github.com/bdobrica/Hikari/internal/hikari/vision"
)

// Defaults for Config.
const (
	DefaultSendDelay     = 2 * time.Second
	DefaultChatModel     = "o4-mini"
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 1000
	DefaultMaxCompletion = 5000
	DefaultMaxAudioBytes = 25 << 20
	DefaultSystemPrompt  = "You are a helpful assistant. Be friendly, accurate and concise."
)

// Config holds the tunables of the state machine.
type Config struct {
	// DefaultRecipient is used when the draft has no recipient.
	DefaultRecipient string
	// SendDelay is how long a captioned attachment waits for sibling files
	// of the same upload before the email goes out.
	SendDelay time.Duration

	ChatModel           string
	Temperature         float32
	MaxTokens           int
	MaxCompletionTokens int
	SystemPrompt        string

	WhisperLanguage string
	MaxAudioBytes   int64

	VisionEnabled  bool
	VisionOptions  vision.Options
	VisionShowCost bool
}

func (c *Config) defaults() {
	if c.SendDelay < 0 {
		c.SendDelay = 0
	}
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxCompletionTokens <= 0 {
		c.MaxCompletionTokens = DefaultMaxCompletion
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.MaxAudioBytes <= 0 {
		c.MaxAudioBytes = DefaultMaxAudioBytes
	}
}

// Limiter gates chat turns per user.
type Limiter interface {
	Allow(key string) bool
	Remaining(key string) int
}

// Deps are the collaborators of a Machine. Sessions, Modules and Memory are
// required; the rest may be nil when the matching module is unconfigured.
type Deps struct {
	Sessions    *Sessions
	Modules     *modules.Registry
	Memory      *memory.HybridManager
	Mode        *memory.ModeController
	Completer   llm.Completer
	Transcriber llm.Transcriber
	Mailer      mail.Sender
	Limiter     Limiter
	Logger      *slog.Logger
}

// Machine is the conversation state machine. Every exported On* method and
// Handle lock the user's session for the duration of the call, except while
// waiting out SendDelay.
type Machine struct {
	cfg    Config
	deps   Deps
	router *router
	logger *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewMachine builds a Machine and registers its commands and callbacks.
func NewMachine(cfg Config, deps Deps) *Machine {
	cfg.defaults()
	if deps.Sessions == nil {
		deps.Sessions = NewSessions()
	}
	if deps.Modules == nil {
		deps.Modules = modules.NewRegistry()
	}
	if deps.Memory == nil {
		deps.Memory = memory.NewHybridManager(memory.NewSessionStore(0), nil, nil, memory.HybridConfig{}, deps.Logger)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{
		cfg:    cfg,
		deps:   deps,
		router: newRouter("/"),
		logger: logger,
		sleep:  sleepCtx,
	}
	m.routes()
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Machine) routes() {
	r := m.router
	start := func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.onCommandStart(t, startText) }
	r.command("start", start)
	r.command("menu", func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.onCommandStart(t, menuText) })
	r.command("chatgpt_info", func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.chatInfo(t) })

	r.callback(CbMainMenu, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.onMainMenu(t) })
	for _, key := range []string{modules.KeyEmail, modules.KeyChat, modules.KeyAudio, modules.KeyID} {
		r.callback(key, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.onModeSelect(t, key) })
	}

	r.callback(CbResetDraft, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.onReset(t) })
	r.callback(CbExitEmail, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.onExitMode(t) })
	r.callback(CbRecipientMenu, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.recipientMenu(t) })
	r.callback(CbEditRecipient, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.editRecipient(t) })
	r.callback(CbResetRecipient, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.resetRecipient(t) })
	r.callback(CbBackToEmailMenu, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.backToEmailMenu(t) })
	r.callback(CbShowAttachments, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.showAttachments(t) })

	r.callback(CbMemoryStats, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.memoryStats(t) })
	r.callback(CbMemoryClear, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.memoryClear(ctx, t) })
	r.callback(CbMemoryToggle, func(ctx context.Context, t *turn, _ Event, _ *Command) Reply { return m.memoryToggle(ctx, t) })
}

// turn is one locked handler invocation.
type turn struct {
	m      *Machine
	user   UserID
	sess   *UserSession
	unlock func()
	logger *slog.Logger
}

func (m *Machine) begin(ctx context.Context, user UserID) *turn {
	sess, unlock := m.deps.Sessions.Lock(user)
	return &turn{
		m:      m,
		user:   user,
		sess:   sess,
		unlock: unlock,
		logger: observability.LoggerWithTrace(ctx, m.logger).With("user_id", string(user)),
	}
}

func (t *turn) end() { t.unlock() }

// wait releases the user's lock for d and re-acquires it. Other events for
// the user run in the meantime, so callers must re-read the session after.
func (t *turn) wait(ctx context.Context, d time.Duration) error {
	t.unlock()
	err := t.m.sleep(ctx, d)
	t.sess, t.unlock = t.m.deps.Sessions.Lock(t.user)
	return err
}

// Handle routes ev to the matching handler.
func (m *Machine) Handle(ctx context.Context, ev Event) Reply {
	t := m.begin(ctx, ev.User)
	defer func() { t.end() }()
	if ev.Chat != "" {
		t.sess.Chat = ev.Chat
	}

	switch {
	case ev.Callback != "":
		h, ok := m.router.routeCallback(ev.Callback)
		if !ok {
			t.logger.Debug("unknown callback", "data", ev.Callback)
			return Reply{Notice: unknownActionNotice}
		}
		return h(ctx, t, ev, nil)
	case ev.Media != nil:
		return m.onMediaInput(ctx, t, ev.Media)
	default:
		if h, cmd, ok := m.router.routeText(ev.Text); ok {
			return h(ctx, t, ev, cmd)
		}
		return m.onTextInput(ctx, t, ev.Text)
	}
}

// OnCommandStart moves user to Idle and returns the main menu. The draft is
// left as is.
func (m *Machine) OnCommandStart(ctx context.Context, user UserID) Reply {
	t := m.begin(ctx, user)
	defer func() { t.end() }()
	return m.onCommandStart(t, startText)
}

// OnModeSelect enters the module registered under key.
func (m *Machine) OnModeSelect(ctx context.Context, user UserID, key string) Reply {
	t := m.begin(ctx, user)
	defer func() { t.end() }()
	return m.onModeSelect(t, key)
}

// OnTextInput handles free text according to the user's state.
func (m *Machine) OnTextInput(ctx context.Context, user UserID, text string) Reply {
	t := m.begin(ctx, user)
	defer func() { t.end() }()
	return m.onTextInput(ctx, t, text)
}

// OnMediaInput handles a file according to the user's state.
func (m *Machine) OnMediaInput(ctx context.Context, user UserID, media *Media) Reply {
	t := m.begin(ctx, user)
	defer func() { t.end() }()
	return m.onMediaInput(ctx, t, media)
}

// OnReset clears the draft but keeps the recipient.
func (m *Machine) OnReset(ctx context.Context, user UserID) Reply {
	t := m.begin(ctx, user)
	defer func() { t.end() }()
	return m.onReset(t)
}

// OnExitMode returns user to Idle and keeps the draft.
func (m *Machine) OnExitMode(ctx context.Context, user UserID) Reply {
	t := m.begin(ctx, user)
	defer func() { t.end() }()
	return m.onExitMode(t)
}

// State returns user's current state.
func (m *Machine) State(user UserID) State {
	return m.deps.Sessions.Snapshot(user).State
}

func (m *Machine) mainMenu(text string) Reply {
	return Reply{Text: text, Buttons: menuButtons(m.deps.Modules)}
}

func (m *Machine) onCommandStart(t *turn, text string) Reply {
	t.sess.State = Idle
	return m.mainMenu(text)
}

func (m *Machine) onMainMenu(t *turn) Reply {
	t.sess.State = Idle
	r := m.mainMenu(menuText)
	r.Notice = welcomeBackNotice
	return r
}

func (m *Machine) onModeSelect(t *turn, key string) Reply {
	mod, ok := m.deps.Modules.Lookup(key)
	if !ok {
		return Reply{Notice: unknownActionNotice}
	}
	d := mod.Describe()
	if !mod.Configured() {
		return Reply{
			Text:    fmt.Sprintf(notConfiguredText, d.Label),
			Buttons: backButtons(),
			Notice:  notConfiguredNotice,
		}
	}

	switch key {
	case modules.KeyEmail:
		if t.sess.State.InEmail() {
			return Reply{Notice: fmt.Sprintf(alreadyInModeNotice, "email")}
		}
		t.sess.State = EmailEnteringDraft
		r := m.emailBanner(t)
		r.Notice = "✉️ Email mode"
		return r
	case modules.KeyChat:
		if t.sess.State == ChatActive {
			return Reply{Notice: fmt.Sprintf(alreadyInModeNotice, "chat")}
		}
		t.sess.State = ChatActive
		return Reply{Text: chatActivatedText, Buttons: chatButtons(m.deps.Memory.Mode() == memory.SourceHybrid), Notice: "🤖 Chat mode"}
	case modules.KeyAudio:
		if t.sess.State == AudioWaiting {
			return Reply{Notice: fmt.Sprintf(alreadyInModeNotice, "transcription")}
		}
		t.sess.State = AudioWaiting
		return Reply{Text: m.audioActivatedText(), Buttons: backButtons(), Notice: "🎙 Transcription mode"}
	case modules.KeyID:
		chat := t.sess.Chat
		if chat == "" {
			chat = string(t.user)
		}
		return Reply{Text: fmt.Sprintf(idText, t.user, chat), Buttons: backButtons(), Notice: idNotice}
	default:
		t.logger.Error("module has no entry state", "module", key)
		return Reply{Notice: unknownActionNotice}
	}
}

func (m *Machine) onExitMode(t *turn) Reply {
	wasEmail := t.sess.State.InEmail()
	t.sess.State = Idle
	text := menuText
	if wasEmail {
		text = emailExitText
	}
	return m.mainMenu(text)
}

func (m *Machine) onTextInput(ctx context.Context, t *turn, text string) Reply {
	switch t.sess.State {
	case EmailEnteringRecipient:
		return m.enterRecipient(t, text)
	case EmailEnteringDraft:
		return m.enterDraft(ctx, t, text)
	case ChatActive:
		return m.chatText(ctx, t, text)
	case AudioWaiting:
		return Reply{Text: audioReminderText, Buttons: backButtons()}
	case Idle:
		return Reply{Text: fmt.Sprintf(echoText, text)}
	default:
		t.logger.Error("unknown conversation state", "state", t.sess.State.String())
		t.sess.State = Idle
		return m.mainMenu(menuText)
	}
}

func (m *Machine) onMediaInput(ctx context.Context, t *turn, md *Media) Reply {
	switch t.sess.State {
	case EmailEnteringDraft:
		return m.attachMedia(ctx, t, md)
	case AudioWaiting:
		if !md.audioLike() {
			return Reply{Text: audioHintText, Buttons: backButtons()}
		}
		return m.transcribeOnly(ctx, t, md)
	case ChatActive:
		switch {
		case md.audioLike():
			return m.chatAudio(ctx, t, md)
		case md.imageLike():
			return m.chatImage(ctx, t, md)
		default:
			return Reply{Text: chatUnsupportedText, Buttons: chatButtons(m.deps.Memory.Mode() == memory.SourceHybrid)}
		}
	case EmailEnteringRecipient:
		return Reply{Text: recipientFirstText, Buttons: recipientButtons()}
	default:
		return Reply{Text: fmt.Sprintf(safetyNetText, t.sess.State.label())}
	}
}
