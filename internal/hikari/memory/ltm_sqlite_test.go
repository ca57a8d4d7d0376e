package memory

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/Hikari/internal/hikari/store"
)

// setupTestLTM returns a SQLiteLTM over a fresh in-memory database with all
// migrations applied and a deterministic clock.
func setupTestLTM(t *testing.T, embedder Embedder) *SQLiteLTM {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ltm := NewSQLiteLTM(st.DB(), embedder, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ltm.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return ltm
}

// keywordEmbedder maps text onto a 3-dim vector of keyword hits.
type keywordEmbedder struct{ fail bool }

func (k keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if k.fail {
		return nil, errors.New("embedder down")
	}
	lower := strings.ToLower(text)
	vec := []float32{0.01, 0.01, 0.01}
	for i, kw := range []string{"tea", "cat", "berlin"} {
		if strings.Contains(lower, kw) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func exchange(u, a string) []Turn {
	return []Turn{{Role: RoleUser, Text: u}, {Role: RoleAssistant, Text: a}}
}

func TestSQLiteLTM_SearchBySimilarity(t *testing.T) {
	ltm := setupTestLTM(t, keywordEmbedder{})
	ctx := context.Background()

	for _, turns := range [][]Turn{
		exchange("I live in Berlin", "Nice city"),
		exchange("I love green tea", "Tea is great"),
		exchange("My cat is called Miso", "Cute name"),
	} {
		if err := ltm.Add(ctx, "u1", turns); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := ltm.Add(ctx, "u2", exchange("tea tea tea", "ok")); err != nil {
		t.Fatalf("Add u2: %v", err)
	}

	facts, err := ltm.Search(ctx, "u1", "what tea do I drink", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}
	if !strings.Contains(facts[0].Text, "green tea") {
		t.Errorf("best match should be the tea fact, got %q", facts[0].Text)
	}
	if facts[0].Score <= facts[1].Score {
		t.Errorf("scores not descending: %v, %v", facts[0].Score, facts[1].Score)
	}
}

func TestSQLiteLTM_SearchFallsBackToRecency(t *testing.T) {
	ltm := setupTestLTM(t, nil)
	ctx := context.Background()

	ltm.Add(ctx, "u1", exchange("first", "a"))
	ltm.Add(ctx, "u1", exchange("second", "b"))
	ltm.Add(ctx, "u1", exchange("third", "c"))

	facts, err := ltm.Search(ctx, "u1", "anything", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(facts) != 2 || !strings.Contains(facts[0].Text, "third") || !strings.Contains(facts[1].Text, "second") {
		t.Fatalf("expected newest first, got %+v", facts)
	}
	if got, _ := ltm.Search(ctx, "u1", "x", 0); got != nil {
		t.Fatalf("limit 0 should return nil, got %+v", got)
	}
}

func TestSQLiteLTM_AddSurvivesEmbedderFailure(t *testing.T) {
	ltm := setupTestLTM(t, keywordEmbedder{fail: true})
	ctx := context.Background()

	if err := ltm.Add(ctx, "u1", exchange("hello", "hi")); err != nil {
		t.Fatalf("Add should not fail when embedding fails: %v", err)
	}
	facts, err := ltm.Search(ctx, "u1", "hello", 3)
	if err != nil || len(facts) != 1 {
		t.Fatalf("expected recency fallback hit, got %+v, %v", facts, err)
	}
}

func TestSQLiteLTM_ProfileIsUserSideAndDistinct(t *testing.T) {
	ltm := setupTestLTM(t, nil)
	ctx := context.Background()

	ltm.Add(ctx, "u1", exchange("I live in Cluj", "Nice city"))
	ltm.Add(ctx, "u1", exchange("I live in Cluj", "You said that"))
	ltm.Add(ctx, "u1", exchange("I like tea", "Noted"))

	p, err := ltm.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if strings.Contains(p, "Assistant") || strings.Contains(p, "Noted") {
		t.Fatalf("profile carries assistant lines: %q", p)
	}
	if strings.Count(p, "I live in Cluj") != 1 || !strings.Contains(p, "I like tea") {
		t.Fatalf("unexpected profile %q", p)
	}
}

func TestSQLiteLTM_ProfileAndDeleteAll(t *testing.T) {
	ltm := setupTestLTM(t, nil)
	ctx := context.Background()

	if p, err := ltm.Profile(ctx, "u1"); err != nil || p != "" {
		t.Fatalf("empty profile: got %q, %v", p, err)
	}

	ltm.Add(ctx, "u1", exchange("name is Alex", "hi Alex"))
	p, err := ltm.Profile(ctx, "u1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p != "• name is Alex" {
		t.Fatalf("unexpected profile %q", p)
	}

	if err := ltm.DeleteAll(ctx, "u1"); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if err := ltm.DeleteAll(ctx, "u1"); err != nil {
		t.Fatalf("second DeleteAll: %v", err)
	}
	if facts, _ := ltm.Search(ctx, "u1", "alex", 3); len(facts) != 0 {
		t.Fatalf("expected no facts after DeleteAll, got %+v", facts)
	}
}

func TestSQLiteLTM_AddIgnoresEmptyTurns(t *testing.T) {
	ltm := setupTestLTM(t, nil)
	if err := ltm.Add(context.Background(), "u1", nil); err != nil {
		t.Fatalf("Add(nil): %v", err)
	}
	if facts, _ := ltm.Search(context.Background(), "u1", "", 5); len(facts) != 0 {
		t.Fatalf("expected nothing stored, got %+v", facts)
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
