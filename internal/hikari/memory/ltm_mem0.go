package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bdobrica/Hikari/common/retry"
)

const (
	defaultMem0BaseURL = "https://api.mem0.ai"
	defaultMem0Timeout = 15 * time.Second

	// mem0ProfileQuery is the search used to assemble a user profile; the
	// hosted API has no dedicated profile endpoint.
	mem0ProfileQuery = "profile preferences about user"
	mem0ProfileLimit = 10

	maxMem0ResponseBytes = 1 << 20
)

// Mem0Config configures the hosted Mem0 memory backend.
type Mem0Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retry   retry.Config
}

// Mem0Client implements LongTermMemory against the Mem0 platform REST API.
type Mem0Client struct {
	cfg    Mem0Config
	http   *http.Client
	logger *slog.Logger
}

// NewMem0Client creates a Mem0 backend. Zero-valued config fields select the
// public endpoint, a 15 s timeout and retry.DefaultConfig.
func NewMem0Client(cfg Mem0Config, logger *slog.Logger) *Mem0Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultMem0BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultMem0Timeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mem0Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name implements Named.
func (c *Mem0Client) Name() string { return "mem0" }

type mem0Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mem0AddRequest struct {
	Messages []mem0Message `json:"messages"`
	UserID   string        `json:"user_id"`
}

type mem0SearchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

type mem0Memory struct {
	ID     string  `json:"id"`
	Memory string  `json:"memory"`
	Score  float64 `json:"score"`
}

// Add submits the turns; Mem0 extracts facts server-side.
func (c *Mem0Client) Add(ctx context.Context, userID string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}
	req := mem0AddRequest{UserID: userID, Messages: make([]mem0Message, 0, len(turns))}
	for _, t := range turns {
		req.Messages = append(req.Messages, mem0Message{Role: t.Role, Content: t.Text})
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/memories/", nil, req); err != nil {
		return fmt.Errorf("mem0: add: %w", err)
	}
	return nil
}

// Search returns the memories Mem0 ranks highest for query.
func (c *Mem0Client) Search(ctx context.Context, userID, query string, limit int) ([]Fact, error) {
	facts, err := c.search(ctx, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("mem0: search: %w", err)
	}
	return facts, nil
}

func (c *Mem0Client) search(ctx context.Context, userID, query string, limit int) ([]Fact, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := c.do(ctx, http.MethodPost, "/v1/memories/search/", nil, mem0SearchRequest{
		Query:  query,
		UserID: userID,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	memories, err := decodeMem0Memories(raw)
	if err != nil {
		return nil, err
	}

	facts := make([]Fact, 0, len(memories))
	for _, m := range memories {
		if strings.TrimSpace(m.Memory) == "" {
			continue
		}
		facts = append(facts, Fact{ID: m.ID, Text: m.Memory, Score: m.Score})
		if len(facts) == limit {
			break
		}
	}
	return facts, nil
}

// Profile returns the profile-oriented memories as bullet lines.
func (c *Mem0Client) Profile(ctx context.Context, userID string) (string, error) {
	facts, err := c.search(ctx, userID, mem0ProfileQuery, mem0ProfileLimit)
	if err != nil {
		return "", fmt.Errorf("mem0: profile: %w", err)
	}
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = "• " + f.Text
	}
	return strings.Join(lines, "\n"), nil
}

// DeleteAll removes every memory for userID.
func (c *Mem0Client) DeleteAll(ctx context.Context, userID string) error {
	q := url.Values{"user_id": {userID}}
	if _, err := c.do(ctx, http.MethodDelete, "/v1/memories/", q, nil); err != nil {
		return fmt.Errorf("mem0: delete all: %w", err)
	}
	return nil
}

// decodeMem0Memories accepts both the bare-array and the {"results": [...]}
// response shapes returned by different API versions.
func decodeMem0Memories(raw []byte) ([]mem0Memory, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []mem0Memory
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return list, nil
	}
	var wrapped struct {
		Results []mem0Memory `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapped.Results, nil
}

// do sends one request with retries. 429 and 5xx answers are retried; other
// non-2xx answers fail immediately.
func (c *Mem0Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var out []byte
	err := retry.Do(ctx, c.cfg.Retry, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return retry.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxMem0ResponseBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &Mem0StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return retry.Permanent(statusErr)
		}
		out = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Mem0StatusError is returned for non-2xx answers from the Mem0 API.
type Mem0StatusError struct {
	StatusCode int
	Body       string
}

func (e *Mem0StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "…"
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, body)
}

var _ LongTermMemory = (*Mem0Client)(nil)
