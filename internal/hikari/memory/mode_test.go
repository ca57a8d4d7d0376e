package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bdobrica/Hikari/internal/hikari/settings"
)

// failingStore wraps a settings.Store and fails writes on demand.
type failingStore struct {
	settings.Store
	failSet bool
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

func newFileSettings(t *testing.T) *settings.FileStore {
	t.Helper()
	s, err := settings.NewFile(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return s
}

func TestModeController_ToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFileSettings(t)
	ctrl := NewModeController(ctx, store, true, nil)
	m := NewHybridManager(NewSessionStore(10), NoopLTM{}, ctrl.Flag(), HybridConfig{}, nil)

	if m.BuildContext(ctx, "u1", "x").Source != SourceHybrid {
		t.Fatal("expected hybrid initially")
	}

	v, err := ctrl.Toggle(ctx)
	if err != nil || v {
		t.Fatalf("first toggle: %v, %v", v, err)
	}
	if m.BuildContext(ctx, "u1", "x").Source != SourceSession {
		t.Fatal("expected session after first toggle")
	}
	persisted, _ := settings.GetBool(ctx, store, settings.KeyHybridMemory, true)
	if persisted {
		t.Fatal("toggle was not persisted")
	}

	v, err = ctrl.Toggle(ctx)
	if err != nil || !v {
		t.Fatalf("second toggle: %v, %v", v, err)
	}
	if m.BuildContext(ctx, "u1", "x").Source != SourceHybrid {
		t.Fatal("expected hybrid after second toggle")
	}
}

func TestModeController_WriteFailureKeepsFlag(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: newFileSettings(t)}
	ctrl := NewModeController(ctx, store, true, nil)

	store.failSet = true
	v, err := ctrl.Toggle(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if !v || !ctrl.Enabled() {
		t.Fatalf("flag must stay unchanged on write failure: returned %v, enabled %v", v, ctrl.Enabled())
	}
}

func TestModeController_LoadsPersistedValue(t *testing.T) {
	ctx := context.Background()
	store := newFileSettings(t)
	if err := settings.SetBool(ctx, store, settings.KeyHybridMemory, false); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	if NewModeController(ctx, store, true, nil).Enabled() {
		t.Fatal("persisted false should win over default true")
	}
}

func TestModeController_Reload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store, err := settings.NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	ctrl := NewModeController(ctx, store, true, nil)

	other, err := settings.NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	settings.SetBool(ctx, other, settings.KeyHybridMemory, false)

	v, changed, err := ctrl.Reload(ctx)
	if err != nil || v || !changed || ctrl.Enabled() {
		t.Fatalf("Reload: %v, changed=%v, %v (enabled=%v)", v, changed, err, ctrl.Enabled())
	}
	if _, changed, _ := ctrl.Reload(ctx); changed {
		t.Fatal("second Reload reported a change")
	}
}
