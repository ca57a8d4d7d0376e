package memory

import "context"

// NoopLTM is a stub LongTermMemory that remembers nothing. It is the default
// when no backend is configured, which makes hybrid mode behave like
// session-only mode.
type NoopLTM struct{}

// Add discards the turns.
func (NoopLTM) Add(context.Context, string, []Turn) error { return nil }

// Search always returns an empty result.
func (NoopLTM) Search(context.Context, string, string, int) ([]Fact, error) { return nil, nil }

// Profile always returns "".
func (NoopLTM) Profile(context.Context, string) (string, error) { return "", nil }

// DeleteAll succeeds without doing anything.
func (NoopLTM) DeleteAll(context.Context, string) error { return nil }

// Name implements Named.
func (NoopLTM) Name() string { return "noop" }

var _ LongTermMemory = NoopLTM{}
