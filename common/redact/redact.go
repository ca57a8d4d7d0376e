// Package redact strips sensitive values from log output before it leaves the
// process.
//
// The bot token, OpenAI and Mem0 API keys and the Gmail refresh token must
// never appear in log lines or in chat replies. The Telegram token is also part
// of every Bot API URL, so errors returned by net/http carry it; BotURL masks
// that form without knowing the token.
//
// Redaction is best-effort and works on string representations only.
package redact

import (
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// botPath matches the "/bot<id>:<secret>" segment of Bot API URLs.
var botPath = regexp.MustCompile(`/(file/)?bot\d+:[A-Za-z0-9_-]+`)

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values shorter than 4 characters are skipped to avoid
// spurious redaction of common substrings.
//
// Example:
//
//	safe := redact.String(err.Error(), botToken, openAIKey)
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// BotURL masks Telegram bot tokens embedded in URL paths.
func BotURL(s string) string {
	return botPath.ReplaceAllStringFunc(s, func(m string) string {
		if strings.HasPrefix(m, "/file/") {
			return "/file/bot" + placeholder
		}
		return "/bot" + placeholder
	})
}

// Map returns a shallow copy of m with values replaced by [REDACTED] for
// every key whose name suggests it contains a secret. Non-string values are
// left unchanged.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			if str, ok := v.(string); ok && str != "" {
				out[k] = placeholder
				continue
			}
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "passwd", "token", "secret", "key", "credential", "auth"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
