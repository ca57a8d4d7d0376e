package memory

import "context"

// LongTermMemory is the pluggable interface to a durable, semantically
// searchable memory of past conversations. Implementations range from a
// no-op stub (default) to a local SQLite store and the hosted Mem0 service.
//
// Every method may fail; HybridManager treats all failures as "no long-term
// context" and never surfaces them to the user.
type LongTermMemory interface {
	// Add submits one or more dialogue turns for userID. The backend decides
	// what (if anything) to remember from them.
	Add(ctx context.Context, userID string, turns []Turn) error

	// Search returns up to limit facts relevant to query, best match first.
	Search(ctx context.Context, userID, query string, limit int) ([]Fact, error)

	// Profile returns a free-text summary of what is known about the user,
	// or "" when nothing is known.
	Profile(ctx context.Context, userID string) (string, error)

	// DeleteAll forgets everything stored for userID.
	DeleteAll(ctx context.Context, userID string) error
}

// Fact is one remembered piece of text returned by Search.
type Fact struct {
	ID    string
	Text  string
	Score float64
}

// Named is implemented by backends that can report a display name.
type Named interface {
	Name() string
}

// BackendName returns the display name of ltm, or "none" for nil.
func BackendName(ltm LongTermMemory) string {
	if ltm == nil {
		return "none"
	}
	if n, ok := ltm.(Named); ok {
		return n.Name()
	}
	return "custom"
}
