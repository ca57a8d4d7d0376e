// Package app wires storage, memory, modules and a transport into a running
// bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/Hikari/internal/hikari/config"
	"github.com/bdobrica/Hikari/internal/hikari/conversation"
	"github.com/bdobrica/Hikari/internal/hikari/llm"
	"github.com/bdobrica/Hikari/internal/hikari/mail"
	"github.com/bdobrica/Hikari/internal/hikari/matrix"
	"github.com/bdobrica/Hikari/internal/hikari/memory"
	"github.com/bdobrica/Hikari/internal/hikari/modules"
	"github.com/bdobrica/Hikari/internal/hikari/ratelimit"
	"github.com/bdobrica/Hikari/internal/hikari/settings"
	"github.com/bdobrica/Hikari/internal/hikari/store"
	"github.com/bdobrica/Hikari/internal/hikari/telegram"
	"github.com/bdobrica/Hikari/internal/hikari/vision"
)

// App is the assembled bot.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	store    *store.Store
	settings settings.Store
	mode     *memory.ModeController
	memory   *memory.HybridManager
	sessions *conversation.Sessions
	modules  *modules.Registry
	limiter  *ratelimit.Limiter
	machine  *conversation.Machine
	guard    *Guard

	health   *HealthServer
	telegram *telegram.Bot
	matrix   *matrix.Client
}

// Deps lets callers, mostly tests, replace the external services. Nil
// fields are built from the config.
type Deps struct {
	Completer   llm.Completer
	Transcriber llm.Transcriber
	Mailer      mail.Sender
}

// New opens the database and builds every component. The transport is
// created but not started.
func New(ctx context.Context, cfg config.Config, deps Deps, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("opening database", "path", cfg.Database.Path)
	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a := &App{cfg: cfg, logger: logger, store: st}
	if err := a.build(ctx, deps); err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, deps Deps) error {
	cfg := a.cfg

	ss, err := OpenSettings(cfg, a.store)
	if err != nil {
		return err
	}
	a.settings = ss
	a.mode = memory.NewModeController(ctx, ss, cfg.Memory.HybridDefault, a.logger)

	ltm := BuildLTM(cfg, a.store, a.logger)
	a.memory = memory.NewHybridManager(
		memory.NewSessionStore(cfg.Memory.SessionCapacity),
		ltm,
		a.mode.Flag(),
		memory.HybridConfig{
			SearchLimit:      cfg.Memory.SearchLimit,
			SessionExchanges: cfg.Memory.SessionExchanges,
			LTMTimeout:       cfg.Memory.LTMTimeout,
		},
		a.logger,
	)
	a.logger.Info("memory ready", "backend", memory.BackendName(ltm), "hybrid", a.mode.Enabled())

	if deps.Completer == nil || deps.Transcriber == nil {
		if cfg.OpenAI.APIKey != "" {
			client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
				APIKey:            cfg.OpenAI.APIKey,
				BaseURL:           cfg.OpenAI.BaseURL,
				WhisperModel:      cfg.OpenAI.WhisperModel,
				ChatTimeout:       cfg.OpenAI.ChatTimeout,
				TranscribeTimeout: cfg.OpenAI.TranscribeTimeout,
			}, a.logger)
			if err != nil {
				return fmt.Errorf("app: %w", err)
			}
			if deps.Completer == nil {
				deps.Completer = client
			}
			if deps.Transcriber == nil {
				deps.Transcriber = client
			}
		} else {
			a.logger.Warn("OPENAI_API_KEY not set; chat and transcription are disabled")
		}
	}

	emailReady := deps.Mailer != nil
	if deps.Mailer == nil {
		deps.Mailer, emailReady, err = buildMailer(cfg, a.logger)
		if err != nil {
			return err
		}
	}
	mailer := &mail.AuditedSender{Next: deps.Mailer, Audit: a.store, Logger: a.logger}

	a.modules = modules.NewRegistry()
	for _, m := range Modules(cfg, emailReady, deps.Completer != nil, deps.Transcriber != nil) {
		if err := a.modules.Register(m); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}

	mdeps := conversation.Deps{
		Sessions:    conversation.NewSessions(),
		Modules:     a.modules,
		Memory:      a.memory,
		Mode:        a.mode,
		Completer:   deps.Completer,
		Transcriber: deps.Transcriber,
		Mailer:      mailer,
		Logger:      a.logger,
	}
	if cfg.OpenAI.RateLimit > 0 {
		a.limiter = ratelimit.New(cfg.OpenAI.RateLimit, time.Minute)
		mdeps.Limiter = a.limiter
	}
	a.sessions = mdeps.Sessions

	visionOn := cfg.Vision.Enabled && vision.SupportsModel(cfg.OpenAI.ChatModel)
	if cfg.Vision.Enabled && !visionOn {
		a.logger.Warn("vision disabled: chat model does not accept images", "model", cfg.OpenAI.ChatModel)
	}
	a.machine = conversation.NewMachine(conversation.Config{
		DefaultRecipient:    cfg.Email.DefaultRecipient,
		SendDelay:           cfg.Email.SendDelay,
		ChatModel:           cfg.OpenAI.ChatModel,
		Temperature:         float32(cfg.OpenAI.Temperature),
		MaxTokens:           cfg.OpenAI.MaxTokens,
		MaxCompletionTokens: cfg.OpenAI.MaxCompletionTokens,
		SystemPrompt:        cfg.OpenAI.SystemPrompt,
		WhisperLanguage:     cfg.OpenAI.WhisperLanguage,
		MaxAudioBytes:       int64(cfg.Audio.MaxMB) << 20,
		VisionEnabled:       visionOn,
		VisionOptions: vision.Options{
			MaxBytes:      cfg.Vision.MaxImageMB << 20,
			MaxResolution: cfg.Vision.MaxResolution,
			JPEGQuality:   cfg.Vision.Quality,
			Detail:        cfg.Vision.Detail,
		},
		VisionShowCost: cfg.Vision.ShowCost,
	}, mdeps)
	a.guard = NewGuard(cfg.AllowedUsers, a.machine, a.logger)

	if cfg.HTTPAddr != "" {
		a.health = NewHealthServer(cfg.HTTPAddr, cfg.Transport, a, a.logger)
	}
	return a.buildTransport()
}

func (a *App) buildTransport() error {
	switch a.cfg.Transport {
	case config.TransportMatrix:
		c, err := matrix.New(matrix.Config{
			Homeserver:       a.cfg.Matrix.Homeserver,
			UserID:           a.cfg.Matrix.UserID,
			AccessToken:      a.cfg.Matrix.AccessToken,
			Rooms:            a.cfg.Matrix.Rooms,
			DB:               a.store.DB(),
			MaxDownloadBytes: int64(max(a.cfg.Audio.MaxMB, a.cfg.Vision.MaxImageMB*4)) << 20,
		}, a.guard, a.logger)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.matrix = c
	default:
		b, err := telegram.NewBot(telegram.Config{
			Token:       a.cfg.Telegram.Token,
			BaseURL:     a.cfg.Telegram.BaseURL,
			PollTimeout: a.cfg.Telegram.PollTimeout,
		}, a.guard, a.logger)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.telegram = b
	}
	return nil
}

// OpenSettings returns the settings backend selected by cfg.
func OpenSettings(cfg config.Config, st *store.Store) (settings.Store, error) {
	switch cfg.Settings.Backend {
	case config.SettingsFile:
		fs, err := settings.NewFile(cfg.Settings.Path)
		if err != nil {
			return nil, fmt.Errorf("app: settings: %w", err)
		}
		return fs, nil
	case config.SettingsSQLite, "":
		if st == nil {
			return nil, errors.New("app: settings: sqlite backend needs a database")
		}
		return settings.NewSQLite(st), nil
	default:
		return nil, fmt.Errorf("app: settings: unknown backend %q", cfg.Settings.Backend)
	}
}

// BuildLTM returns the long-term memory backend selected by cfg.
func BuildLTM(cfg config.Config, st *store.Store, logger *slog.Logger) memory.LongTermMemory {
	switch cfg.Memory.Backend {
	case config.BackendMem0:
		return memory.NewMem0Client(memory.Mem0Config{
			APIKey:  cfg.Memory.Mem0APIKey,
			BaseURL: cfg.Memory.Mem0BaseURL,
		}, logger)
	case config.BackendSQLite:
		var emb memory.Embedder = memory.NoopEmbedder{}
		if cfg.OpenAI.APIKey != "" {
			emb = memory.NewOpenAIEmbedder(memory.OpenAIEmbedderConfig{
				APIKey:  cfg.OpenAI.APIKey,
				BaseURL: cfg.OpenAI.BaseURL,
				Model:   cfg.Memory.EmbeddingModel,
			})
		}
		return memory.NewSQLiteLTM(st.DB(), emb, logger)
	default:
		return memory.NoopLTM{}
	}
}

// buildMailer returns Gmail delivery when configured, a logging sender in
// dry-run mode, and otherwise a logging sender with the module disabled.
func buildMailer(cfg config.Config, logger *slog.Logger) (mail.Sender, bool, error) {
	if cfg.EmailConfigured() {
		g, err := mail.NewGmailSender(mail.GmailConfig{
			From:         cfg.Email.From,
			ClientID:     cfg.Email.ClientID,
			ClientSecret: cfg.Email.ClientSecret,
			RefreshToken: cfg.Email.RefreshToken,
			Addr:         cfg.Email.SMTPAddr,
		}, logger)
		if err != nil {
			return nil, false, fmt.Errorf("app: %w", err)
		}
		return g, true, nil
	}
	if cfg.Email.DryRun {
		logger.Warn("email dry run: drafts are logged, not sent")
	}
	return mail.LogSender{Logger: logger}, cfg.Email.DryRun, nil
}

// Modules lists the feature modules in menu order with their readiness.
func Modules(cfg config.Config, email, chat, transcribe bool) []modules.Module {
	return []modules.Module{
		modules.Static{Descriptor: modules.Descriptor{
			Key: modules.KeyEmail, Label: "📧 Send email", Order: 10,
			Description: "Forward files and text drafts by email",
		}, Ready: email},
		modules.Static{Descriptor: modules.Descriptor{
			Key: modules.KeyChat, Label: "🤖 ChatGPT", Order: 20,
			Description: "Chat with memory, voice and images",
		}, Ready: chat},
		modules.Static{Descriptor: modules.Descriptor{
			Key: modules.KeyAudio, Label: "🎤 Transcribe audio", Order: 30,
			Description: "Turn voice messages and audio files into text",
		}, Ready: transcribe && cfg.Audio.Enabled},
		modules.Static{Descriptor: modules.Descriptor{
			Key: modules.KeyID, Label: "🆔 My ID", Order: 40,
			Description: "Show your user and chat ids",
		}, Ready: true},
	}
}

// Handler is the allow-listed entry point transports call.
func (a *App) Handler() conversation.Handler { return a.guard }

// Machine returns the state machine behind the guard.
func (a *App) Machine() *conversation.Machine { return a.machine }

// ModeController returns the memory mode toggle.
func (a *App) ModeController() *memory.ModeController { return a.mode }

// ActiveUsers is the number of users with a session.
func (a *App) ActiveUsers() int { return a.sessions.Len() }

// MemoryStatus reports the memory mode and backend.
func (a *App) MemoryStatus() memory.Stats { return a.memory.Stats("") }

// Run starts the optional health server and the transport, and blocks until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.health != nil {
		if err := a.health.Start(ctx); err != nil {
			a.logger.Warn("health server failed to start; continuing without it", "err", err)
		}
	}
	if a.limiter != nil {
		go a.pruneLimiter(ctx)
	}
	go a.watchMode(ctx)

	a.logger.Info("hikari is running", "transport", a.cfg.Transport, "allowed_users", len(a.cfg.AllowedUsers))
	if a.matrix != nil {
		if err := a.matrix.Start(ctx); err != nil {
			return fmt.Errorf("app: %w", err)
		}
		<-ctx.Done()
		a.matrix.Stop()
		return nil
	}
	return a.telegram.Run(ctx)
}

func (a *App) pruneLimiter(ctx context.Context) {
	t := time.NewTicker(10 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Prune(time.Hour); n > 0 {
				a.logger.Debug("rate limiter pruned idle users", "count", n)
			}
		}
	}
}

// modeReloadInterval bounds how long a mode change made outside the process
// (the CLI, a hand-edited settings file) takes to reach running turns.
const modeReloadInterval = 30 * time.Second

// ReloadMode adopts the persisted memory mode. serve calls it on SIGHUP.
func (a *App) ReloadMode(ctx context.Context) {
	if _, _, err := a.mode.Reload(ctx); err != nil {
		a.logger.Warn("memory mode reload failed", "err", err)
	}
}

func (a *App) watchMode(ctx context.Context) {
	t := time.NewTicker(modeReloadInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.ReloadMode(ctx)
		}
	}
}

// Close releases the database.
func (a *App) Close() error {
	if a.health != nil {
		a.health.Stop()
	}
	return a.store.Close()
}
