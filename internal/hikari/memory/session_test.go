package memory

import (
	"fmt"
	"sync"
	"testing"
)

func TestSessionStore_NeverExceedsCapacity(t *testing.T) {
	s := NewSessionStore(10)
	for calls := 1; calls <= 12; calls++ {
		s.AppendExchange("u1", fmt.Sprintf("q%d", calls), fmt.Sprintf("a%d", calls))
		want := min(2*calls, 10)
		if got := s.Len("u1"); got != want {
			t.Fatalf("after %d calls: len=%d, want %d", calls, got, want)
		}
	}
}

func TestSessionStore_EvictsOldestFirst(t *testing.T) {
	s := NewSessionStore(4)
	s.AppendExchange("u1", "q1", "a1")
	s.AppendExchange("u1", "q2", "a2")
	s.AppendExchange("u1", "q3", "a3")

	got := s.Turns("u1")
	want := []Turn{
		{RoleUser, "q2"}, {RoleAssistant, "a2"},
		{RoleUser, "q3"}, {RoleAssistant, "a3"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSessionStore_OddCapacity(t *testing.T) {
	s := NewSessionStore(3)
	s.AppendExchange("u1", "q1", "a1")
	s.AppendExchange("u1", "q2", "a2")

	got := s.Turns("u1")
	if len(got) != 3 || got[0].Text != "a1" || got[2].Text != "a2" {
		t.Fatalf("unexpected turns: %+v", got)
	}
}

func TestSessionStore_Tail(t *testing.T) {
	s := NewSessionStore(10)
	for i := range 5 {
		s.AppendExchange("u1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	tail := s.Tail("u1", 6)
	if len(tail) != 6 || tail[0].Text != "q2" || tail[5].Text != "a4" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
	if got := s.Tail("u1", 100); len(got) != 10 {
		t.Fatalf("oversized tail: got %d turns", len(got))
	}
	if got := s.Tail("nobody", 3); got != nil {
		t.Fatalf("expected nil for unknown user, got %+v", got)
	}
}

func TestSessionStore_TurnsIsACopy(t *testing.T) {
	s := NewSessionStore(4)
	s.AppendExchange("u1", "q1", "a1")

	turns := s.Turns("u1")
	turns[0].Text = "mutated"

	if s.Turns("u1")[0].Text != "q1" {
		t.Fatal("mutating the snapshot changed the store")
	}
}

func TestSessionStore_PerUserIsolationAndClear(t *testing.T) {
	s := NewSessionStore(0)
	if s.Capacity() != DefaultSessionCapacity {
		t.Fatalf("default capacity: got %d", s.Capacity())
	}
	s.AppendExchange("u1", "q", "a")
	s.AppendExchange("u2", "q", "a")

	s.Clear("u1")
	s.Clear("u1")
	if s.Len("u1") != 0 {
		t.Fatal("u1 should be empty")
	}
	if s.Len("u2") != 2 {
		t.Fatal("u2 should be untouched")
	}
}

func TestSessionStore_ConcurrentAppends(t *testing.T) {
	s := NewSessionStore(10)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AppendExchange(fmt.Sprintf("u%d", i%5), "q", "a")
		}(i)
	}
	wg.Wait()
	for i := range 5 {
		if got := s.Len(fmt.Sprintf("u%d", i)); got != 10 {
			t.Errorf("u%d: len=%d, want 10", i, got)
		}
	}
}
