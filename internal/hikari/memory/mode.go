package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bdobrica/Hikari/internal/hikari/settings"
)

// ModeFlag is the process-wide "hybrid memory enabled" switch. Readers load
// it once per turn; only ModeController writes it.
type ModeFlag struct {
	v atomic.Bool
}

// NewModeFlag returns a flag with the given initial value.
func NewModeFlag(enabled bool) *ModeFlag {
	f := &ModeFlag{}
	f.v.Store(enabled)
	return f
}

// Enabled reports whether hybrid memory is on.
func (f *ModeFlag) Enabled() bool { return f.v.Load() }

func (f *ModeFlag) set(enabled bool) { f.v.Store(enabled) }

// ModeController flips the hybrid flag and persists it. The settings store is
// the source of truth: the in-memory flag only changes after a successful
// write.
type ModeController struct {
	store  settings.Store
	flag   *ModeFlag
	logger *slog.Logger

	mu sync.Mutex // serializes Toggle/Reload
}

// NewModeController loads the persisted value (falling back to def when the
// key is missing or unreadable) and returns a controller plus the flag it
// manages.
func NewModeController(ctx context.Context, store settings.Store, def bool, logger *slog.Logger) *ModeController {
	if logger == nil {
		logger = slog.Default()
	}
	enabled, err := settings.GetBool(ctx, store, settings.KeyHybridMemory, def)
	if err != nil {
		logger.Warn("memory: could not read persisted mode, using default", "err", err, "default", def)
		enabled = def
	}
	return &ModeController{
		store:  store,
		flag:   NewModeFlag(enabled),
		logger: logger,
	}
}

// Flag returns the flag read by HybridManager.
func (c *ModeController) Flag() *ModeFlag { return c.flag }

// Enabled reports the current in-memory value.
func (c *ModeController) Enabled() bool { return c.flag.Enabled() }

// Toggle flips the active mode, persists it and returns the new value. The
// flip is relative to what this process is serving, so the user always sees
// the mode change. A stored value written elsewhere (the CLI, a hand edit)
// that was not reloaded yet is logged and overwritten. On a storage failure
// the flag is left untouched and the previous value is returned together
// with the error.
func (c *ModeController) Toggle(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.flag.Enabled()
	if stored, ok := c.stored(ctx); ok && stored != active {
		c.logger.Warn("memory: stored mode drifted from the active mode",
			"active_hybrid", active, "stored_hybrid", stored)
	}
	next := !active
	if err := settings.SetBool(ctx, c.store, settings.KeyHybridMemory, next); err != nil {
		return active, fmt.Errorf("memory: toggle mode: %w", err)
	}
	c.flag.set(next)
	c.logger.Info("memory: mode toggled", "hybrid", next)
	return next, nil
}

// stored reads the persisted value after refreshing the store.
func (c *ModeController) stored(ctx context.Context) (bool, bool) {
	if err := c.store.Reload(ctx); err != nil {
		c.logger.Warn("memory: reload settings", "err", err)
		return false, false
	}
	v, err := settings.GetBool(ctx, c.store, settings.KeyHybridMemory, c.flag.Enabled())
	if err != nil {
		c.logger.Warn("memory: read stored mode", "err", err)
		return false, false
	}
	return v, true
}

// Reload adopts the persisted value, e.g. after "hikari memory toggle" or a
// hand edit of the settings file. changed reports whether the active mode
// moved.
func (c *ModeController) Reload(ctx context.Context) (enabled, changed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.flag.Enabled()
	if err := c.store.Reload(ctx); err != nil {
		return before, false, fmt.Errorf("memory: reload mode: %w", err)
	}
	enabled, err = settings.GetBool(ctx, c.store, settings.KeyHybridMemory, before)
	if err != nil {
		return before, false, fmt.Errorf("memory: reload mode: %w", err)
	}
	c.flag.set(enabled)
	if enabled != before {
		c.logger.Info("memory: mode reloaded", "hybrid", enabled)
	}
	return enabled, enabled != before, nil
}
