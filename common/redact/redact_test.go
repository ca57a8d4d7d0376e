package redact_test

import (
	"testing"

	"github.com/bdobrica/Hikari/common/redact"
)

func TestString(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		values []string
		want   string
	}{
		{"single", "Authorization: Bearer sk-secret-12345 (log)", []string{"sk-secret-12345"}, "Authorization: Bearer [REDACTED] (log)"},
		{"short value skipped", "abc token", []string{"abc"}, "abc token"},
		{"multiple", "key=sk-aaaa mem0=m0-bbbb end", []string{"sk-aaaa", "m0-bbbb"}, "key=[REDACTED] mem0=[REDACTED] end"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := redact.String(tc.in, tc.values...); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBotURL(t *testing.T) {
	cases := map[string]string{
		`Post "https://api.telegram.org/bot123456:AAE-x_yz/sendMessage": EOF`: `Post "https://api.telegram.org/bot[REDACTED]/sendMessage": EOF`,
		"https://api.telegram.org/file/bot42:abcDEF/voice/file_1.oga":         "https://api.telegram.org/file/bot[REDACTED]/voice/file_1.oga",
		"no url here": "no url here",
	}
	for in, want := range cases {
		if got := redact.BotURL(in); got != want {
			t.Errorf("BotURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMap_RedactsSensitiveKeys(t *testing.T) {
	m := map[string]any{
		"recipient":     "someone@example.com",
		"refresh_token": "1//abc",
		"api_key":       "key_abc",
		"count":         2,
	}
	out := redact.Map(m)

	if out["recipient"] != "someone@example.com" {
		t.Errorf("recipient should not be redacted, got %v", out["recipient"])
	}
	if out["refresh_token"] != "[REDACTED]" || out["api_key"] != "[REDACTED]" {
		t.Errorf("secrets should be redacted, got %v", out)
	}
	if out["count"] != 2 {
		t.Errorf("non-string value should be unchanged, got %v", out["count"])
	}
	if m["api_key"] != "key_abc" {
		t.Error("Map mutated the original")
	}
}
