package memory

import "sync"

// DefaultSessionCapacity is the number of turns kept per user (5 exchanges).
const DefaultSessionCapacity = 10

// SessionStore keeps the most recent dialogue turns of every user in process
// memory. Each user gets a fixed-capacity ring; once full, the oldest turn is
// overwritten. Contents are lost on restart.
//
// SessionStore is safe for concurrent use.
type SessionStore struct {
	mu       sync.Mutex
	capacity int
	rings    map[string]*ring
}

// NewSessionStore creates a store holding up to capacity turns per user.
// Non-positive values select DefaultSessionCapacity.
func NewSessionStore(capacity int) *SessionStore {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	return &SessionStore{
		capacity: capacity,
		rings:    make(map[string]*ring),
	}
}

// Capacity returns the per-user turn capacity.
func (s *SessionStore) Capacity() int { return s.capacity }

// AppendExchange records a user message and the assistant reply as two turns.
func (s *SessionStore) AppendExchange(userID, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rings[userID]
	if r == nil {
		r = newRing(s.capacity)
		s.rings[userID] = r
	}
	r.push(Turn{Role: RoleUser, Text: userText})
	r.push(Turn{Role: RoleAssistant, Text: assistantText})
}

// Turns returns a copy of all stored turns for userID, oldest first.
func (s *SessionStore) Turns(userID string) []Turn {
	return s.Tail(userID, s.capacity)
}

// Tail returns a copy of the last n turns for userID, oldest first.
func (s *SessionStore) Tail(userID string, n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rings[userID]
	if r == nil || n <= 0 {
		return nil
	}
	return r.tail(n)
}

// Len returns the number of turns stored for userID.
func (s *SessionStore) Len(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.rings[userID]; r != nil {
		return r.size
	}
	return 0
}

// Clear forgets every turn for userID. Clearing an unknown user is a no-op.
func (s *SessionStore) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rings, userID)
}

// ring is a fixed-capacity FIFO of turns.
type ring struct {
	buf   []Turn
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Turn, capacity)}
}

func (r *ring) push(t Turn) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = t
		r.size++
		return
	}
	r.buf[r.start] = t
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) tail(n int) []Turn {
	if n > r.size {
		n = r.size
	}
	out := make([]Turn, n)
	first := r.start + r.size - n
	for i := range n {
		out[i] = r.buf[(first+i)%len(r.buf)]
	}
	return out
}
