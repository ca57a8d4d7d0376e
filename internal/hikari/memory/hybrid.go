package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Source labels which memory backed a context.
type Source string

const (
	SourceHybrid  Source = "hybrid"
	SourceSession Source = "session"
)

// Defaults for HybridConfig.
const (
	DefaultSearchLimit      = 3
	DefaultSessionExchanges = 3
	DefaultLTMTimeout       = 10 * time.Second
)

// Section headers used when assembling the context block.
const (
	profileHeader = "What is known about the user:"
	searchHeader  = "Relevant information from earlier conversations:"
	sessionHeader = "Recent conversation:"
)

// HybridConfig tunes HybridManager.
type HybridConfig struct {
	// SearchLimit is the top-K passed to LongTermMemory.Search. Default 3.
	SearchLimit int
	// SessionExchanges is how many recent exchanges hybrid mode includes.
	// Session-only mode always uses the whole buffer. Default 3.
	SessionExchanges int
	// LTMTimeout bounds every long-term call. Default 10 s.
	LTMTimeout time.Duration
}

// Context is the result of BuildContext.
type Context struct {
	Text   string
	Items  int
	Source Source
	// Degraded is set when long-term memory was requested but failed.
	Degraded bool
}

// Stats is what the chat module shows under "memory stats".
type Stats struct {
	Mode            Source
	Backend         string
	SessionCount    int
	SessionCapacity int
}

// HybridManager combines SessionStore with a LongTermMemory behind one
// contract. It never returns errors: long-term failures are logged and the
// turn continues with session content only.
type HybridManager struct {
	session *SessionStore
	ltm     LongTermMemory
	mode    *ModeFlag
	cfg     HybridConfig
	logger  *slog.Logger
}

// NewHybridManager wires the manager. A nil ltm selects NoopLTM and a nil
// logger selects slog.Default().
func NewHybridManager(session *SessionStore, ltm LongTermMemory, mode *ModeFlag, cfg HybridConfig, logger *slog.Logger) *HybridManager {
	if ltm == nil {
		ltm = NoopLTM{}
	}
	if mode == nil {
		mode = NewModeFlag(false)
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if cfg.SessionExchanges <= 0 {
		cfg.SessionExchanges = DefaultSessionExchanges
	}
	if cfg.LTMTimeout <= 0 {
		cfg.LTMTimeout = DefaultLTMTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridManager{session: session, ltm: ltm, mode: mode, cfg: cfg, logger: logger}
}

// Mode returns the source label of the currently active mode.
func (m *HybridManager) Mode() Source {
	if m.mode.Enabled() {
		return SourceHybrid
	}
	return SourceSession
}

// Scope pins the memory mode for the duration of one chat turn, so that a
// toggle arriving mid-turn cannot make BuildContext and Record disagree.
type Scope struct {
	m      *HybridManager
	hybrid bool
}

// Scope reads the mode flag once and returns a pinned view.
func (m *HybridManager) Scope() Scope {
	return Scope{m: m, hybrid: m.mode.Enabled()}
}

// Hybrid reports the pinned mode.
func (s Scope) Hybrid() bool { return s.hybrid }

// BuildContext is HybridManager.BuildContext with the pinned mode.
func (s Scope) BuildContext(ctx context.Context, userID, query string) Context {
	return s.m.buildContext(ctx, s.hybrid, userID, query)
}

// Record is HybridManager.Record with the pinned mode.
func (s Scope) Record(ctx context.Context, userID, userText, assistantText string) {
	s.m.record(ctx, s.hybrid, userID, userText, assistantText)
}

// BuildContext assembles the memory block for the user's next chat turn.
// In hybrid mode it fetches the profile and the top-K search results
// concurrently, then joins them with the recent session tail in that order.
func (m *HybridManager) BuildContext(ctx context.Context, userID, query string) Context {
	return m.buildContext(ctx, m.mode.Enabled(), userID, query)
}

func (m *HybridManager) buildContext(ctx context.Context, hybrid bool, userID, query string) Context {
	if !hybrid {
		turns := m.session.Turns(userID)
		if len(turns) == 0 {
			return Context{Source: SourceSession}
		}
		return Context{
			Text:   sessionHeader + "\n" + formatTurns(turns),
			Items:  countExchanges(turns),
			Source: SourceSession,
		}
	}

	ltmCtx, cancel := context.WithTimeout(ctx, m.cfg.LTMTimeout)
	defer cancel()

	var (
		profile string
		facts   []Fact
	)
	// A plain Group: a failed lookup leaves the other one running.
	var g errgroup.Group
	g.Go(func() (err error) {
		if profile, err = m.ltm.Profile(ltmCtx, userID); err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if facts, err = m.ltm.Search(ltmCtx, userID, query, m.cfg.SearchLimit); err != nil {
			return fmt.Errorf("search: %w", err)
		}
		return nil
	})
	turns := m.session.Tail(userID, 2*m.cfg.SessionExchanges)

	out := Context{Source: SourceHybrid}
	if err := g.Wait(); err != nil {
		m.logger.Warn("memory: long-term retrieval failed, using session only",
			"user_id", userID, "err", err)
		profile, facts = "", nil
		out.Degraded = true
	}

	var parts []string
	if p := strings.TrimSpace(profile); p != "" {
		parts = append(parts, profileHeader+"\n"+p)
	}
	if lines := factLines(facts, formatTurns(turns)); len(lines) > 0 {
		parts = append(parts, searchHeader+"\n"+strings.Join(lines, "\n"))
		out.Items += len(lines)
	}
	if len(turns) > 0 {
		parts = append(parts, sessionHeader+"\n"+formatTurns(turns))
		out.Items += countExchanges(turns)
	}
	out.Text = strings.Join(parts, "\n\n")
	return out
}

// factLines renders search results, skipping repeats and facts the session
// tail already shows verbatim.
func factLines(facts []Fact, tail string) []string {
	var lines []string
	seen := make(map[string]bool, len(facts))
	for _, f := range facts {
		t := strings.TrimSpace(f.Text)
		if t == "" || seen[t] || strings.Contains(tail, t) {
			continue
		}
		seen[t] = true
		lines = append(lines, "• "+t)
	}
	return lines
}

// Record stores a finished exchange. The session buffer is always updated;
// in hybrid mode the exchange is also submitted to long-term memory, and a
// failure there is only logged.
func (m *HybridManager) Record(ctx context.Context, userID, userText, assistantText string) {
	m.record(ctx, m.mode.Enabled(), userID, userText, assistantText)
}

func (m *HybridManager) record(ctx context.Context, hybrid bool, userID, userText, assistantText string) {
	m.session.AppendExchange(userID, userText, assistantText)
	if !hybrid {
		return
	}

	ltmCtx, cancel := context.WithTimeout(ctx, m.cfg.LTMTimeout)
	defer cancel()
	turns := []Turn{{Role: RoleUser, Text: userText}, {Role: RoleAssistant, Text: assistantText}}
	if err := m.ltm.Add(ltmCtx, userID, turns); err != nil {
		m.logger.Warn("memory: long-term add failed", "user_id", userID, "err", err)
	}
}

// ClearAll wipes the user's session buffer and, in hybrid mode, their
// long-term memories. It reports true only when every applicable step
// succeeded; a session clear is never rolled back.
func (m *HybridManager) ClearAll(ctx context.Context, userID string) bool {
	m.session.Clear(userID)
	if !m.mode.Enabled() {
		return true
	}

	ltmCtx, cancel := context.WithTimeout(ctx, m.cfg.LTMTimeout)
	defer cancel()
	if err := m.ltm.DeleteAll(ltmCtx, userID); err != nil {
		m.logger.Warn("memory: long-term delete failed", "user_id", userID, "err", err)
		return false
	}
	return true
}

// Stats reports the active mode and session occupancy.
func (m *HybridManager) Stats(userID string) Stats {
	return Stats{
		Mode:            m.Mode(),
		Backend:         BackendName(m.ltm),
		SessionCount:    m.session.Len(userID),
		SessionCapacity: m.session.Capacity(),
	}
}
