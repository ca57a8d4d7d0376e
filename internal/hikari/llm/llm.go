// Package llm wraps the language-model services the bot talks to: chat
// completion (text and image input) and speech transcription.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a completion prompt. ImageURL, when set, attaches
// an image (usually a data URL) to a user message.
type Message struct {
	Role        string
	Content     string
	ImageURL    string
	ImageDetail string
}

// Params tune a single completion.
type Params struct {
	Model               string
	Temperature         float32
	MaxTokens           int
	MaxCompletionTokens int
}

// Audio is a recording to transcribe. Filename carries the extension the
// service uses to detect the container format.
type Audio struct {
	Filename string
	Data     []byte
}

// Completer produces a chat completion.
type Completer interface {
	Complete(ctx context.Context, msgs []Message, p Params) (string, error)
}

// Transcriber turns speech into text. An empty language lets the service
// detect it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, language string) (string, error)
}

// ErrTimeout is returned when a call exceeds its deadline.
var ErrTimeout = errors.New("llm: request timed out")

// ErrEmptyResponse is returned when the service answers without content.
var ErrEmptyResponse = errors.New("llm: empty response")

// ServiceError is a non-timeout failure reported by the remote service.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm: %s: %s", e.Op, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// reasoningPrefixes identify models that reject system messages and
// temperature and bill hidden reasoning against max_completion_tokens.
var reasoningPrefixes = []string{"o1-", "o3-", "o4-"}

// MinReasoningCompletionTokens is the floor applied to reasoning models so
// hidden reasoning does not starve the visible answer.
const MinReasoningCompletionTokens = 5000

// IsReasoningModel reports whether model belongs to the reasoning family.
func IsReasoningModel(model string) bool {
	for _, p := range reasoningPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// EffectiveCompletionTokens returns the completion budget sent for a
// reasoning model.
func EffectiveCompletionTokens(p Params) int {
	if p.MaxCompletionTokens > p.MaxTokens {
		return p.MaxCompletionTokens
	}
	return max(p.MaxTokens, MinReasoningCompletionTokens)
}

// foldSystem merges system messages into the first user message.
func foldSystem(msgs []Message) []Message {
	var system []string
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if m.Content != "" {
				system = append(system, m.Content)
			}
			continue
		}
		out = append(out, m)
	}
	if len(system) == 0 {
		return out
	}
	prefix := strings.Join(system, "\n\n")
	for i := range out {
		if out[i].Role == RoleUser {
			out[i].Content = prefix + "\n\n" + out[i].Content
			return out
		}
	}
	return append([]Message{{Role: RoleUser, Content: prefix}}, out...)
}
