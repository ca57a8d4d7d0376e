package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for OpenAIConfig.
const (
	DefaultChatTimeout       = 30 * time.Second
	DefaultTranscribeTimeout = 60 * time.Second
	DefaultWhisperModel      = openai.Whisper1
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	WhisperModel      string
	ChatTimeout       time.Duration
	TranscribeTimeout time.Duration
	HTTPClient        *http.Client
}

// OpenAIClient implements Completer and Transcriber on the OpenAI API.
type OpenAIClient struct {
	client            *openai.Client
	whisperModel      string
	chatTimeout       time.Duration
	transcribeTimeout time.Duration
	logger            *slog.Logger
}

var (
	_ Completer   = (*OpenAIClient)(nil)
	_ Transcriber = (*OpenAIClient)(nil)
)

// NewOpenAIClient builds a client. An empty API key is an error.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	c := &OpenAIClient{
		client:            openai.NewClientWithConfig(oc),
		whisperModel:      cfg.WhisperModel,
		chatTimeout:       cfg.ChatTimeout,
		transcribeTimeout: cfg.TranscribeTimeout,
		logger:            logger,
	}
	if c.whisperModel == "" {
		c.whisperModel = DefaultWhisperModel
	}
	if c.chatTimeout <= 0 {
		c.chatTimeout = DefaultChatTimeout
	}
	if c.transcribeTimeout <= 0 {
		c.transcribeTimeout = DefaultTranscribeTimeout
	}
	return c, nil
}

// Complete sends msgs to the chat completion endpoint.
func (c *OpenAIClient) Complete(ctx context.Context, msgs []Message, p Params) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	req := buildChatRequest(msgs, p)
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(ctx, "complete", err)
	}
	c.logger.Debug("chat completion",
		"model", req.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start))

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Transcribe uploads audio to the speech-to-text endpoint.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio Audio, language string) (string, error) {
	if len(audio.Data) == 0 {
		return "", errors.New("llm: transcribe: empty audio")
	}
	ctx, cancel := context.WithTimeout(ctx, c.transcribeTimeout)
	defer cancel()

	req := openai.AudioRequest{
		Model:    c.whisperModel,
		FilePath: audio.Filename,
		Reader:   bytes.NewReader(audio.Data),
	}
	if language != "" && language != "auto" {
		req.Language = language
	}
	resp, err := c.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", classify(ctx, "transcribe", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func buildChatRequest(msgs []Message, p Params) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{Model: p.Model}
	if IsReasoningModel(p.Model) {
		msgs = foldSystem(msgs)
		req.MaxCompletionTokens = EffectiveCompletionTokens(p)
	} else {
		req.Temperature = p.Temperature
		req.MaxTokens = p.MaxTokens
	}
	req.Messages = make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		req.Messages = append(req.Messages, toOpenAIMessage(m))
	}
	return req
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessage {
	if m.ImageURL == "" {
		return openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	detail := openai.ImageURLDetailLow
	if m.ImageDetail == string(openai.ImageURLDetailHigh) {
		detail = openai.ImageURLDetailHigh
	}
	parts := make([]openai.ChatMessagePart, 0, 2)
	if m.Content != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: m.Content})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type:     openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{URL: m.ImageURL, Detail: detail},
	})
	return openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts}
}

// classify maps transport and API errors onto ErrTimeout or *ServiceError.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("llm: %s: %w", op, ErrTimeout)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{Op: op, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &ServiceError{Op: op, StatusCode: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	return &ServiceError{Op: op, Message: err.Error(), Err: err}
}
