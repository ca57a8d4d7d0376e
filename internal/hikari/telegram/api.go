// Package telegram is a small Bot API client plus the long-polling loop that
// feeds updates into the conversation machine.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bdobrica/Hikari/common/redact"
	"github.com/bdobrica/Hikari/common/retry"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// APIError is an ok=false answer from the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

// NotModified reports whether the error is the harmless "message is not
// modified" answer to an edit that changes nothing.
func (e *APIError) NotModified() bool {
	return e.Code == http.StatusBadRequest && strings.Contains(e.Description, "message is not modified")
}

// RetryDelay exposes retry_after to retry.Do.
func (e *APIError) RetryDelay() time.Duration { return e.RetryAfter }

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

// Client calls the Bot API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	retry   retry.Config
}

// NewClient returns a client for token. A nil httpClient gets a 60s timeout,
// which must exceed the long-poll timeout.
func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		retry:   retry.Config{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second, ShouldRetry: retryable},
	}
}

// call posts req as JSON to method and decodes the result into out.
// Transport errors are scrubbed of the bot token.
func (c *Client) call(ctx context.Context, method string, req, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: encode: %w", method, err)
	}
	u := c.baseURL + "/bot" + c.token + "/" + method
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: %s: %s", method, redact.BotURL(err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("telegram: %s: %w", method, ctxErr)
		}
		return fmt.Errorf("telegram: %s: %s", method, redact.BotURL(err.Error()))
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("telegram: %s: read: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Method: method, Code: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
	}
	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram: %s: decode result: %w", method, err)
	}
	return nil
}

// callRetry is call with retries on rate limits, 5xx and network errors.
func (c *Client) callRetry(ctx context.Context, method string, req, out any) error {
	return retry.Do(ctx, c.retry, func() error {
		return c.call(ctx, method, req, out)
	})
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", struct{}{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for updates from offset on.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	secs := max(int(timeout.Seconds()), 1)
	ctx, cancel := context.WithTimeout(ctx, time.Duration(secs)*time.Second+10*time.Second)
	defer cancel()

	var out []Update
	err := c.call(ctx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        secs,
		AllowedUpdates: []string{"message", "callback_query"},
	}, &out)
	return out, err
}

// SendMessage posts text to chatID and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (int64, error) {
	var msg Message
	err := c.callRetry(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text, ReplyMarkup: markup}, &msg)
	return msg.MessageID, err
}

// EditMessageText replaces the text and keyboard of a sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	return c.callRetry(ctx, "editMessageText", editMessageTextRequest{
		ChatID: chatID, MessageID: messageID, Text: text, ReplyMarkup: markup,
	}, nil)
}

// AnswerCallbackQuery acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{CallbackQueryID: id, Text: text}, nil)
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, errors.New("telegram: getFile: missing file_id")
	}
	var f File
	if err := c.callRetry(ctx, "getFile", getFileRequest{FileID: fileID}, &f); err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, errors.New("telegram: getFile: missing file_path")
	}
	return &f, nil
}

// ErrFileTooLarge is returned by Download when the file exceeds maxBytes.
var ErrFileTooLarge = errors.New("telegram: file too large")

// Download fetches a file path returned by GetFile, reading at most maxBytes.
func (c *Client) Download(ctx context.Context, filePath string, maxBytes int64) ([]byte, error) {
	u := c.baseURL + "/file/bot" + c.token + "/" + strings.TrimLeft(filePath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %s", redact.BotURL(err.Error()))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %s", redact.BotURL(err.Error()))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("telegram: download: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (>%d bytes)", ErrFileTooLarge, maxBytes)
	}
	return data, nil
}

// DownloadFile is GetFile followed by Download.
func (c *Client) DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.FileSize > maxBytes {
		return nil, fmt.Errorf("%w (%d > %d bytes)", ErrFileTooLarge, f.FileSize, maxBytes)
	}
	return c.Download(ctx, f.FilePath, maxBytes)
}
