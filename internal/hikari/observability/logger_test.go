package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/bdobrica/Hikari/common/trace"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerWithTrace_AddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "json")
	ctx := trace.WithTraceID(context.Background(), "t_abc")

	LoggerWithTrace(ctx, logger).Info("turn handled")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["trace_id"] != "t_abc" {
		t.Fatalf("expected trace_id in record, got %v", rec)
	}
}

func TestRedactSecrets(t *testing.T) {
	got := RedactSecrets(`Get "https://api.telegram.org/bot1:tok/getUpdates": key sk-12345`, "sk-12345")
	want := `Get "https://api.telegram.org/bot[REDACTED]/getUpdates": key [REDACTED]`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
