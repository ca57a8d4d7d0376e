package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bdobrica/Hikari/internal/hikari/settings"
	"github.com/bdobrica/Hikari/internal/hikari/store"
)

// Two controllers on one database: the server process and the CLI.
func newSharedControllers(t *testing.T) (server, cli *ModeController, ss settings.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(filepath.Join(t.TempDir(), "hikari.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	ss = settings.NewSQLite(st)
	return NewModeController(ctx, ss, false, nil), NewModeController(ctx, ss, false, nil), ss
}

func TestModeController_ToggleAfterOutOfBandWrite(t *testing.T) {
	ctx := context.Background()
	server, cli, ss := newSharedControllers(t)

	if v, err := cli.Toggle(ctx); err != nil || !v {
		t.Fatalf("cli toggle: %v, %v", v, err)
	}
	if server.Enabled() {
		t.Fatal("server flag changed without a reload")
	}

	v, err := server.Toggle(ctx)
	if err != nil {
		t.Fatalf("server toggle: %v", err)
	}
	if !v || !server.Enabled() {
		t.Fatalf("in-bot toggle must flip the active mode: returned %v, enabled %v", v, server.Enabled())
	}
	stored, err := settings.GetBool(ctx, ss, settings.KeyHybridMemory, false)
	if err != nil {
		t.Fatalf("GetBool: %v", err)
	}
	if stored != server.Enabled() {
		t.Fatalf("stored %v, active %v", stored, server.Enabled())
	}
}

func TestModeController_ReloadPicksUpSharedWrite(t *testing.T) {
	ctx := context.Background()
	server, cli, _ := newSharedControllers(t)

	if _, err := cli.Toggle(ctx); err != nil {
		t.Fatalf("cli toggle: %v", err)
	}
	v, changed, err := server.Reload(ctx)
	if err != nil || !v || !changed || !server.Enabled() {
		t.Fatalf("Reload: %v, changed=%v, %v", v, changed, err)
	}

	// After the reload both sides agree, so the next in-bot toggle turns it off.
	if v, err := server.Toggle(ctx); err != nil || v {
		t.Fatalf("toggle after reload: %v, %v", v, err)
	}
	if _, changed, _ := cli.Reload(ctx); !changed || cli.Enabled() {
		t.Fatalf("cli did not see the server toggle (enabled=%v)", cli.Enabled())
	}
}
