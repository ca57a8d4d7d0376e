package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bdobrica/Hikari/internal/hikari/store"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("hikari %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestVersion(t *testing.T) {
	if out := run(t, "version"); !strings.HasPrefix(out, "hikari ") {
		t.Errorf("version output = %q", out)
	}
}

func TestMemoryToggle_FileSettings(t *testing.T) {
	t.Setenv("SETTINGS_BACKEND", "file")
	t.Setenv("SETTINGS_PATH", filepath.Join(t.TempDir(), "settings.yaml"))

	if out := run(t, "memory", "status"); !strings.Contains(out, "mode: hybrid") {
		t.Fatalf("status = %q", out)
	}
	if out := run(t, "memory", "toggle"); !strings.Contains(out, "mode: session") {
		t.Fatalf("toggle = %q", out)
	}
	if out := run(t, "memory", "status"); !strings.Contains(out, "mode: session") {
		t.Fatalf("status after toggle = %q", out)
	}
}

func TestMemoryStatus_SQLiteSettings(t *testing.T) {
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "hikari.db"))
	t.Setenv("MEMORY_HYBRID_DEFAULT", "false")

	out := run(t, "memory", "status")
	if !strings.Contains(out, "mode: session") || !strings.Contains(out, "settings: sqlite") {
		t.Fatalf("status = %q", out)
	}
}

func TestSettings_ListAndUnset(t *testing.T) {
	t.Setenv("SETTINGS_BACKEND", "file")
	t.Setenv("SETTINGS_PATH", filepath.Join(t.TempDir(), "settings.yaml"))

	run(t, "memory", "toggle")
	if out := run(t, "settings", "list"); !strings.Contains(out, "memory.hybrid_enabled=false") {
		t.Fatalf("list = %q", out)
	}
	run(t, "settings", "unset", "memory.hybrid_enabled")
	if out := run(t, "settings", "list"); out != "" {
		t.Fatalf("list after unset = %q", out)
	}
	if out := run(t, "memory", "status"); !strings.Contains(out, "mode: hybrid") {
		t.Fatalf("default not restored: %q", out)
	}
}

func TestMailHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "hikari.db")
	t.Setenv("DATABASE_PATH", db)

	if out := run(t, "mail", "history", "7"); !strings.Contains(out, "no emails sent by 7") {
		t.Fatalf("empty history = %q", out)
	}

	st, err := store.New(db)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	ctx := context.Background()
	for _, e := range []*store.EmailSend{
		{UserID: "7", Recipient: "a@example.org", Subject: "Report", Attachments: 2, Status: store.EmailStatusSent},
		{UserID: "7", Recipient: "b@example.org", Subject: "Retry", Status: store.EmailStatusFailed, Error: "auth failed"},
	} {
		if err := st.RecordEmailSend(ctx, e); err != nil {
			t.Fatalf("RecordEmailSend: %v", err)
		}
	}
	st.Close()

	out := run(t, "mail", "history", "7", "--limit", "5")
	for _, want := range []string{"a@example.org", "Report", "failed (auth failed)"} {
		if !strings.Contains(out, want) {
			t.Errorf("history missing %q:\n%s", want, out)
		}
	}
}

func TestServe_RequiresConfig(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("BOT_TOKEN", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"serve"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("serve without a token should fail")
	}
}
