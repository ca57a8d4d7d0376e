package config

import (
	"strconv"

	"github.com/bdobrica/Hikari/common/environment"
)

// ApplyEnv overrides cfg with any variables that are set.
func ApplyEnv(cfg *Config) error {
	cfg.Transport = environment.StringOr("HIKARI_TRANSPORT", cfg.Transport)
	cfg.HTTPAddr = environment.StringOr("HTTP_ADDR", cfg.HTTPAddr)

	ids, err := environment.Int64SliceOr("ALLOWED_USER_IDS", nil)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		cfg.AllowedUsers = cfg.AllowedUsers[:0]
		for _, id := range ids {
			cfg.AllowedUsers = append(cfg.AllowedUsers, strconv.FormatInt(id, 10))
		}
	}
	cfg.AllowedUsers = environment.StringSliceOr("MATRIX_ALLOWED_USERS", cfg.AllowedUsers)

	cfg.Log.Level = environment.StringOr("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = environment.StringOr("LOG_FORMAT", cfg.Log.Format)
	cfg.Database.Path = environment.StringOr("DATABASE_PATH", cfg.Database.Path)
	cfg.Settings.Backend = environment.StringOr("SETTINGS_BACKEND", cfg.Settings.Backend)
	cfg.Settings.Path = environment.StringOr("SETTINGS_PATH", cfg.Settings.Path)

	// BOT_TOKEN is the name older deployments use.
	cfg.Telegram.Token = environment.StringOr("BOT_TOKEN", cfg.Telegram.Token)
	cfg.Telegram.Token = environment.StringOr("TELEGRAM_BOT_TOKEN", cfg.Telegram.Token)
	cfg.Telegram.BaseURL = environment.StringOr("TELEGRAM_API_URL", cfg.Telegram.BaseURL)
	cfg.Telegram.PollTimeout = environment.DurationOr("TELEGRAM_POLL_TIMEOUT", cfg.Telegram.PollTimeout)

	cfg.Matrix.Homeserver = environment.StringOr("MATRIX_HOMESERVER", cfg.Matrix.Homeserver)
	cfg.Matrix.UserID = environment.StringOr("MATRIX_USER_ID", cfg.Matrix.UserID)
	cfg.Matrix.AccessToken = environment.StringOr("MATRIX_ACCESS_TOKEN", cfg.Matrix.AccessToken)
	cfg.Matrix.Rooms = environment.StringSliceOr("MATRIX_ROOMS", cfg.Matrix.Rooms)

	o := &cfg.OpenAI
	o.APIKey = environment.StringOr("OPENAI_API_KEY", o.APIKey)
	o.BaseURL = environment.StringOr("OPENAI_BASE_URL", o.BaseURL)
	o.ChatModel = environment.StringOr("CHATGPT_MODEL", o.ChatModel)
	o.Temperature = environment.FloatOr("CHATGPT_TEMPERATURE", o.Temperature)
	o.MaxTokens = environment.IntOr("CHATGPT_MAX_TOKENS", o.MaxTokens)
	o.MaxCompletionTokens = environment.IntOr("CHATGPT_MAX_COMPLETION_TOKENS", o.MaxCompletionTokens)
	o.SystemPrompt = environment.StringOr("CHATGPT_SYSTEM_PROMPT", o.SystemPrompt)
	o.ChatTimeout = environment.DurationOr("CHATGPT_TIMEOUT", o.ChatTimeout)
	o.WhisperModel = environment.StringOr("WHISPER_MODEL", o.WhisperModel)
	o.WhisperLanguage = environment.StringOr("WHISPER_LANGUAGE", o.WhisperLanguage)
	o.TranscribeTimeout = environment.DurationOr("WHISPER_TIMEOUT", o.TranscribeTimeout)
	o.RateLimit = environment.IntOr("CHAT_RATE_LIMIT", o.RateLimit)

	m := &cfg.Memory
	m.Backend = environment.StringOr("MEMORY_BACKEND", m.Backend)
	m.HybridDefault = environment.BoolOr("MEMORY_HYBRID_DEFAULT", m.HybridDefault)
	m.SessionCapacity = environment.IntOr("MEMORY_SESSION_CAPACITY", m.SessionCapacity)
	m.SessionExchanges = environment.IntOr("MEMORY_SESSION_EXCHANGES", m.SessionExchanges)
	m.SearchLimit = environment.IntOr("MEMORY_SEARCH_LIMIT", m.SearchLimit)
	m.LTMTimeout = environment.DurationOr("MEMORY_LTM_TIMEOUT", m.LTMTimeout)
	m.Mem0APIKey = environment.StringOr("MEM0_API_KEY", m.Mem0APIKey)
	m.Mem0BaseURL = environment.StringOr("MEM0_BASE_URL", m.Mem0BaseURL)
	m.EmbeddingModel = environment.StringOr("EMBEDDING_MODEL", m.EmbeddingModel)

	e := &cfg.Email
	e.DefaultRecipient = environment.StringOr("DEFAULT_RECIPIENT", e.DefaultRecipient)
	e.From = environment.StringOr("FROM_EMAIL", e.From)
	e.ClientID = environment.StringOr("GMAIL_CLIENT_ID", e.ClientID)
	e.ClientSecret = environment.StringOr("GMAIL_CLIENT_SECRET", e.ClientSecret)
	e.RefreshToken = environment.StringOr("GMAIL_REFRESH_TOKEN", e.RefreshToken)
	e.SMTPAddr = environment.StringOr("GMAIL_SMTP_ADDR", e.SMTPAddr)
	e.SendDelay = environment.DurationOr("EMAIL_SEND_DELAY", e.SendDelay)
	e.DryRun = environment.BoolOr("EMAIL_DRY_RUN", e.DryRun)

	cfg.Audio.Enabled = environment.BoolOr("AUDIO_TRANSCRIPTION_ENABLED", cfg.Audio.Enabled)
	cfg.Audio.MaxMB = environment.IntOr("AUDIO_MAX_MB", cfg.Audio.MaxMB)

	v := &cfg.Vision
	v.Enabled = environment.BoolOr("VISION_ENABLED", v.Enabled)
	v.MaxImageMB = environment.IntOr("VISION_MAX_IMAGE_MB", v.MaxImageMB)
	v.MaxResolution = environment.IntOr("VISION_MAX_RESOLUTION", v.MaxResolution)
	v.Detail = environment.StringOr("VISION_DETAIL", v.Detail)
	v.Quality = environment.IntOr("VISION_QUALITY", v.Quality)
	v.ShowCost = environment.BoolOr("VISION_SHOW_COST", v.ShowCost)
	return nil
}
