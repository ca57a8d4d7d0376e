// Package config loads the bot configuration from an optional YAML file and
// the environment. The file is checked against an embedded JSON schema before
// it is decoded; environment variables win over file values.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// Transport names.
const (
	TransportTelegram = "telegram"
	TransportMatrix   = "matrix"
)

// Long-term memory backends.
const (
	BackendNoop   = "noop"
	BackendSQLite = "sqlite"
	BackendMem0   = "mem0"
)

// Settings backends.
const (
	SettingsSQLite = "sqlite"
	SettingsFile   = "file"
)

type Config struct {
	Transport    string   `yaml:"transport"`
	AllowedUsers []string `yaml:"allowed_users"`

	// HTTPAddr enables the /health and /status endpoints when set.
	HTTPAddr string `yaml:"http_addr"`

	Log      Log      `yaml:"log"`
	Database Database `yaml:"database"`
	Settings Settings `yaml:"settings"`
	Telegram Telegram `yaml:"telegram"`
	Matrix   Matrix   `yaml:"matrix"`
	OpenAI   OpenAI   `yaml:"openai"`
	Memory   Memory   `yaml:"memory"`
	Email    Email    `yaml:"email"`
	Audio    Audio    `yaml:"audio"`
	Vision   Vision   `yaml:"vision"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Settings struct {
	Backend string `yaml:"backend"`
	// Path is the YAML file used by the file backend.
	Path string `yaml:"path"`
}

type Telegram struct {
	Token       string        `yaml:"token"`
	BaseURL     string        `yaml:"base_url"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

type Matrix struct {
	Homeserver  string   `yaml:"homeserver"`
	UserID      string   `yaml:"user_id"`
	AccessToken string   `yaml:"access_token"`
	Rooms       []string `yaml:"rooms"`
}

type OpenAI struct {
	APIKey              string        `yaml:"api_key"`
	BaseURL             string        `yaml:"base_url"`
	ChatModel           string        `yaml:"chat_model"`
	Temperature         float64       `yaml:"temperature"`
	MaxTokens           int           `yaml:"max_tokens"`
	MaxCompletionTokens int           `yaml:"max_completion_tokens"`
	SystemPrompt        string        `yaml:"system_prompt"`
	ChatTimeout         time.Duration `yaml:"chat_timeout"`
	WhisperModel        string        `yaml:"whisper_model"`

	// WhisperLanguage is an ISO-639-1 hint; "auto" lets the service detect.
	WhisperLanguage   string        `yaml:"whisper_language"`
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout"`

	// RateLimit is chat turns per user per minute; 0 disables limiting.
	RateLimit int `yaml:"rate_limit"`
}

type Memory struct {
	Backend          string        `yaml:"backend"`
	HybridDefault    bool          `yaml:"hybrid_default"`
	SessionCapacity  int           `yaml:"session_capacity"`
	SessionExchanges int           `yaml:"session_exchanges"`
	SearchLimit      int           `yaml:"search_limit"`
	LTMTimeout       time.Duration `yaml:"ltm_timeout"`
	Mem0APIKey       string        `yaml:"mem0_api_key"`
	Mem0BaseURL      string        `yaml:"mem0_base_url"`
	EmbeddingModel   string        `yaml:"embedding_model"`
}

type Email struct {
	DefaultRecipient string        `yaml:"default_recipient"`
	From             string        `yaml:"from"`
	ClientID         string        `yaml:"client_id"`
	ClientSecret     string        `yaml:"client_secret"`
	RefreshToken     string        `yaml:"refresh_token"`
	SMTPAddr         string        `yaml:"smtp_addr"`
	SendDelay        time.Duration `yaml:"send_delay"`

	// DryRun logs drafts instead of delivering them when Gmail is not set up.
	DryRun bool `yaml:"dry_run"`
}

type Audio struct {
	Enabled bool `yaml:"enabled"`
	MaxMB   int  `yaml:"max_mb"`
}

type Vision struct {
	Enabled       bool   `yaml:"enabled"`
	MaxImageMB    int    `yaml:"max_image_mb"`
	MaxResolution int    `yaml:"max_resolution"`
	Detail        string `yaml:"detail"`
	Quality       int    `yaml:"quality"`
	ShowCost      bool   `yaml:"show_cost"`
}

// Default returns the configuration used when neither file nor environment
// says otherwise.
func Default() Config {
	return Config{
		Transport: TransportTelegram,
		Log:       Log{Level: "info", Format: "text"},
		Database:  Database{Path: "./hikari.db"},
		Settings:  Settings{Backend: SettingsSQLite, Path: "./hikari-settings.yaml"},
		Telegram:  Telegram{PollTimeout: 30 * time.Second},
		OpenAI: OpenAI{
			ChatModel:           "o4-mini",
			Temperature:         0.7,
			MaxTokens:           1000,
			MaxCompletionTokens: 5000,
			ChatTimeout:         30 * time.Second,
			WhisperModel:        "whisper-1",
			WhisperLanguage:     "auto",
			TranscribeTimeout:   60 * time.Second,
			RateLimit:           20,
		},
		Memory: Memory{
			Backend:          BackendNoop,
			HybridDefault:    true,
			SessionCapacity:  10,
			SessionExchanges: 3,
			SearchLimit:      3,
			LTMTimeout:       10 * time.Second,
			EmbeddingModel:   "text-embedding-3-small",
		},
		Email:  Email{SMTPAddr: "smtp.gmail.com:587", SendDelay: 2 * time.Second},
		Audio:  Audio{Enabled: true, MaxMB: 25},
		Vision: Vision{Enabled: true, MaxImageMB: 10, MaxResolution: 1024, Detail: "low", Quality: 85, ShowCost: true},
	}
}

// Load reads path (skipped when empty), applies the environment and checks
// the result.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Read is Load without the cross-field checks, for tools that only touch
// storage.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := Decode(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Decode validates raw YAML against the schema and decodes it over cfg.
func Decode(raw []byte, cfg *Config) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

var schema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat = true
	if err := c.AddResource("hikari.schema.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	s, err := c.Compile("hikari.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
})

// validateSchema round-trips doc through JSON so the validator sees the
// number and map types it expects.
func validateSchema(doc any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("invalid config: %s", describe(ve))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// describe flattens a validation error tree into its leaf messages.
func describe(ve *jsonschema.ValidationError) string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return loc + ": " + ve.Message
	}
	parts := make([]string, 0, len(ve.Causes))
	for _, c := range ve.Causes {
		parts = append(parts, describe(c))
	}
	return strings.Join(parts, "; ")
}

// Validate checks cross-field requirements the schema cannot express.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportTelegram:
		if c.Telegram.Token == "" {
			return errors.New("config: telegram token is required (TELEGRAM_BOT_TOKEN)")
		}
		for _, u := range c.AllowedUsers {
			if _, err := strconv.ParseInt(u, 10, 64); err != nil {
				return fmt.Errorf("config: allowed user %q is not a telegram user id", u)
			}
		}
	case TransportMatrix:
		if c.Matrix.Homeserver == "" || c.Matrix.UserID == "" || c.Matrix.AccessToken == "" {
			return errors.New("config: matrix homeserver, user_id and access_token are required")
		}
	default:
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if len(c.AllowedUsers) == 0 {
		return errors.New("config: allowed_users must list at least one user (ALLOWED_USER_IDS)")
	}
	switch c.Memory.Backend {
	case BackendNoop, BackendSQLite:
	case BackendMem0:
		if c.Memory.Mem0APIKey == "" {
			return errors.New("config: memory backend mem0 needs MEM0_API_KEY")
		}
	default:
		return fmt.Errorf("config: unknown memory backend %q", c.Memory.Backend)
	}
	switch c.Settings.Backend {
	case SettingsSQLite:
	case SettingsFile:
		if c.Settings.Path == "" {
			return errors.New("config: settings backend file needs a path")
		}
	default:
		return fmt.Errorf("config: unknown settings backend %q", c.Settings.Backend)
	}
	return nil
}

// EmailConfigured reports whether Gmail delivery can be built.
func (c Config) EmailConfigured() bool {
	e := c.Email
	return e.From != "" && e.ClientID != "" && e.ClientSecret != "" && e.RefreshToken != ""
}

// Allowed returns the allow-list as a set.
func (c Config) Allowed() map[string]bool {
	out := make(map[string]bool, len(c.AllowedUsers))
	for _, u := range c.AllowedUsers {
		out[strings.TrimSpace(u)] = true
	}
	return out
}
