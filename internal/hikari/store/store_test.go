package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bdobrica/Hikari/internal/hikari/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "hikari-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_AppliesAllMigrations(t *testing.T) {
	s := newTestStore(t)

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 4 {
		t.Fatalf("schema version: got %d, want 4", v)
	}

	for _, table := range []string{"settings", "ltm_memories", "matrix_sync_state", "email_sends"} {
		var name string
		err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := dir + "/hikari.db"

	s1, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	var n int
	if err := s2.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 migration rows after reopen, got %d", n)
	}
}

func TestEmailSends_RecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, subj := range []string{"first", "second", "third"} {
		e := &store.EmailSend{
			UserID:      "42",
			Recipient:   "boss@example.com",
			Subject:     subj,
			Attachments: i,
			Status:      store.EmailStatusSent,
			SentAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.RecordEmailSend(ctx, e); err != nil {
			t.Fatalf("RecordEmailSend: %v", err)
		}
		if e.ID == "" {
			t.Fatal("expected generated id")
		}
	}
	if err := s.RecordEmailSend(ctx, &store.EmailSend{UserID: "7", Recipient: "x@y.io", Subject: "other", Status: store.EmailStatusFailed, Error: "smtp: 535"}); err != nil {
		t.Fatalf("RecordEmailSend other user: %v", err)
	}

	got, err := s.ListEmailSends(ctx, "42", 2)
	if err != nil {
		t.Fatalf("ListEmailSends: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Subject != "third" || got[1].Subject != "second" {
		t.Errorf("unexpected order: %q, %q", got[0].Subject, got[1].Subject)
	}
	if got[0].Attachments != 2 || !got[0].SentAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("unexpected row: %+v", got[0])
	}
}
