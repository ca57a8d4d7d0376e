package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// profileFacts is the number of newest facts Profile concatenates.
	profileFacts = 10

	// createdAtLayout has fixed-width fractional seconds so that rows sort
	// chronologically as plain strings.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z"
)

// SQLiteLTM implements LongTermMemory on the ltm_memories table. Each Add
// stores one row per exchange together with an embedding of its text.
//
// Search uses Go-side cosine similarity rather than a SQLite extension because
// modernc.org/sqlite does not support custom C functions. At the expected
// scale (hundreds of rows per user) loading all embeddings and scoring them
// in Go is fast enough. Without an embedder Search returns the newest facts.
type SQLiteLTM struct {
	db       *sql.DB
	embedder Embedder
	logger   *slog.Logger
	now      func() time.Time
}

// NewSQLiteLTM creates a SQLiteLTM backed by the given database connection.
// The ltm_memories table must exist (migration 0002). Nil embedder and logger
// select NoopEmbedder and slog.Default().
func NewSQLiteLTM(db *sql.DB, embedder Embedder, logger *slog.Logger) *SQLiteLTM {
	if embedder == nil {
		embedder = NoopEmbedder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteLTM{db: db, embedder: embedder, logger: logger, now: time.Now}
}

// Name implements Named.
func (s *SQLiteLTM) Name() string { return "sqlite" }

// Add stores the turns as a single fact ("User: …\nAssistant: …").
func (s *SQLiteLTM) Add(ctx context.Context, userID string, turns []Turn) error {
	content := strings.TrimSpace(formatTurns(turns))
	if content == "" {
		return nil
	}

	var embeddingJSON []byte
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		// Keep the fact; it still shows up in recency search and Profile.
		s.logger.Warn("ltm sqlite: embedding failed, storing without vector", "err", err)
	} else if vec != nil {
		if embeddingJSON, err = json.Marshal(vec); err != nil {
			return fmt.Errorf("ltm sqlite: marshal embedding: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ltm_memories (id, user_id, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, content, nullableJSON(embeddingJSON),
		s.now().UTC().Format(createdAtLayout),
	)
	if err != nil {
		return fmt.Errorf("ltm sqlite: insert memory: %w", err)
	}

	s.logger.Debug("ltm sqlite: stored memory",
		"user_id", userID,
		"content_len", len(content),
		"has_embedding", embeddingJSON != nil,
	)
	return nil
}

// Search ranks the user's facts by cosine similarity with the embedded query.
// When the query cannot be embedded, the newest facts are returned instead.
func (s *SQLiteLTM) Search(ctx context.Context, userID, query string, limit int) ([]Fact, error) {
	if limit <= 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("ltm sqlite: failed to embed query, using recency", "err", err)
		queryVec = nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, embedding
		FROM ltm_memories
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ltm sqlite: query memories: %w", err)
	}
	defer rows.Close()

	var candidates []Fact
	for rows.Next() {
		var (
			f             Fact
			embeddingJSON sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Text, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("ltm sqlite: scan memory: %w", err)
		}
		if queryVec != nil {
			vec, err := decodeEmbedding(embeddingJSON)
			if err != nil {
				s.logger.Warn("ltm sqlite: skip malformed embedding", "id", f.ID, "err", err)
				continue
			}
			if vec == nil {
				continue
			}
			f.Score = cosineSimilarity(queryVec, vec)
		}
		candidates = append(candidates, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ltm sqlite: iterate memories: %w", err)
	}

	if queryVec != nil {
		// Stable, so equal scores keep newest-first order.
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

// Profile lists what the user said in their newest stored exchanges, one
// line per distinct statement. Assistant lines are left out; they are what
// Search and the session tail already carry.
func (s *SQLiteLTM) Profile(ctx context.Context, userID string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content FROM ltm_memories
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, profileFacts)
	if err != nil {
		return "", fmt.Errorf("ltm sqlite: query profile: %w", err)
	}
	defer rows.Close()

	var parts []string
	seen := make(map[string]bool)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return "", fmt.Errorf("ltm sqlite: scan profile: %w", err)
		}
		for _, line := range userLines(content) {
			if !seen[line] {
				seen[line] = true
				parts = append(parts, "• "+line)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("ltm sqlite: iterate profile: %w", err)
	}
	return strings.Join(parts, "\n"), nil
}

// userLines extracts the user side of a fact written by Add.
func userLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if text, ok := strings.CutPrefix(line, userPrefix); ok {
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// DeleteAll removes every fact for userID.
func (s *SQLiteLTM) DeleteAll(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ltm_memories WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("ltm sqlite: delete memories: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("ltm sqlite: deleted memories", "user_id", userID, "rows", n)
	return nil
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func decodeEmbedding(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(raw.String), &vec); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	return vec, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 if the lengths differ or either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ LongTermMemory = (*SQLiteLTM)(nil)
