// Package settings holds runtime-mutable, non-secret knobs such as the memory
// mode toggle. Two backends exist: a table in the application SQLite database
// and a small YAML file for deployments that run without a database.
//
// Credentials never go here; they come from the environment only.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Well-known keys.
const (
	// KeyHybridMemory holds "true" when long-term memory participates in chat
	// turns and "false" for session-only mode.
	KeyHybridMemory = "memory.hybrid_enabled"
)

// ErrNotFound is returned by Get when the requested key does not exist.
var ErrNotFound = errors.New("settings: key not found")

// Store is the read/write interface for runtime settings.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value associated with key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, creating or overwriting the entry. A nil
	// error means the value is durable.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns a snapshot of all entries. Never nil.
	List(ctx context.Context) (map[string]string, error)

	// Reload re-reads the backing storage, discarding any cached state.
	Reload(ctx context.Context) error
}

// GetBool reads key as a boolean. Missing keys yield def with a nil error;
// unparseable values yield def and an error.
func GetBool(ctx context.Context, s Store, key string, def bool) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("settings: %q is not a boolean: %q", key, raw)
	}
	return b, nil
}

// SetBool writes key as "true" or "false".
func SetBool(ctx context.Context, s Store, key string, v bool) error {
	return s.Set(ctx, key, strconv.FormatBool(v))
}
