package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bdobrica/Hikari/common/version"
	"github.com/bdobrica/Hikari/internal/hikari/memory"
)

// statusProvider is what /status reports on. App implements it.
type statusProvider interface {
	ActiveUsers() int
	MemoryStatus() memory.Stats
}

// build identifies the running binary in every answer.
type build struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// snapshot is the /status body.
type snapshot struct {
	build
	BuildTime     string    `json:"build_time"`
	Transport     string    `json:"transport"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSecs    float64   `json:"uptime_seconds"`
	ActiveUsers   int       `json:"active_users"`
	MemoryMode    string    `json:"memory_mode,omitempty"`
	MemoryBackend string    `json:"memory_backend,omitempty"`
	Sessions      int       `json:"session_messages"`
}

// HealthServer serves liveness and status checks over HTTP. The bot runs
// without it when http_addr is empty.
type HealthServer struct {
	addr      string
	transport string
	source    statusProvider
	started   time.Time
	mux       *http.ServeMux
	srv       *http.Server
	logger    *slog.Logger
}

// NewHealthServer registers the routes. Nothing listens until Start.
func NewHealthServer(addr, transport string, sp statusProvider, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HealthServer{
		addr:      addr,
		transport: transport,
		source:    sp,
		started:   time.Now(),
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	h.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		h.reply(w, currentBuild())
	})
	h.mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		h.reply(w, h.snapshot())
	})
	return h
}

func currentBuild() build {
	return build{Status: "ok", Version: version.Version, Commit: version.GitCommit}
}

func (h *HealthServer) snapshot() snapshot {
	s := snapshot{
		build:      currentBuild(),
		BuildTime:  version.BuildTime,
		Transport:  h.transport,
		StartedAt:  h.started,
		UptimeSecs: time.Since(h.started).Seconds(),
	}
	if h.source == nil {
		return s
	}
	st := h.source.MemoryStatus()
	s.ActiveUsers = h.source.ActiveUsers()
	s.MemoryMode = string(st.Mode)
	s.MemoryBackend = st.Backend
	s.Sessions = st.SessionCount
	return s
}

func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Start opens the listener, serves in the background and shuts down when
// ctx ends. A bind failure is returned before anything is served.
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", h.addr, err)
	}
	h.srv = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	h.logger.Info("health server listening", "addr", ln.Addr().String())

	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server stopped", "err", err)
		}
	}()
	context.AfterFunc(ctx, h.Stop)
	return nil
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (h *HealthServer) Stop() {
	if h.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		h.logger.Warn("health server shutdown", "err", err)
	}
}

func (h *HealthServer) reply(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("health: encode response", "err", err)
	}
}
