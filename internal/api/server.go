package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/randalmurphal/orc/internal/coordinator"
	"github.com/randalmurphal/orc/internal/events"
	"github.com/randalmurphal/orc/internal/gitrepo"
	"github.com/randalmurphal/orc/internal/store"
)

// Server is the Integration Surface's HTTP front end.
type Server struct {
	addr            string
	maxPortAttempts int
	mux             *http.ServeMux
	logger          *slog.Logger

	db        *store.DB
	coord     *coordinator.Coordinator
	worktrees *gitrepo.Manager
	publisher events.Publisher
	wsHandler *WSHandler

	serverCtx       context.Context
	serverCtxCancel context.CancelFunc
}

// Config holds server configuration.
type Config struct {
	Addr            string
	Logger          *slog.Logger
	MaxPortAttempts int // number of ports to try if the initial one is busy (default 10)

	DB        *store.DB
	Coord     *coordinator.Coordinator
	Worktrees *gitrepo.Manager
	Publisher events.Publisher
}

// DefaultConfig returns the default server configuration, sans the
// required DB/Coord/Worktrees/Publisher wiring the caller must supply.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Logger:          slog.Default(),
		MaxPortAttempts: 10,
	}
}

// New creates a new Integration Surface server.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPortAttempts := cfg.MaxPortAttempts
	if maxPortAttempts <= 0 {
		maxPortAttempts = 10
	}

	serverCtx, serverCtxCancel := context.WithCancel(context.Background())

	s := &Server{
		addr:            cfg.Addr,
		maxPortAttempts: maxPortAttempts,
		mux:             http.NewServeMux(),
		logger:          logger,
		db:              cfg.DB,
		coord:           cfg.Coord,
		worktrees:       cfg.Worktrees,
		publisher:       cfg.Publisher,
		serverCtx:       serverCtx,
		serverCtxCancel: serverCtxCancel,
	}

	s.wsHandler = NewWSHandler(cfg.Publisher, logger)
	s.registerRoutes()
	return s
}

// registerRoutes wires every spec.md §4.6/§6 verb onto the HTTP surface
// shape named there.
func (s *Server) registerRoutes() {
	cors := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			h(w, r)
		}
	}

	s.mux.HandleFunc("GET /api/health", cors(s.handleHealth))

	// Attempts.
	s.mux.HandleFunc("GET /api/projects/{project}/tasks/{task}/attempts", cors(s.handleListAttempts))
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts", cors(s.handleCreateAttempt))
	s.mux.HandleFunc("GET /api/attempts/{id}/details", cors(s.handleGetAttemptDetails))
	s.mux.HandleFunc("GET /api/projects/{project}/tasks/{task}/attempts/{id}/children", cors(s.handleGetChildren))

	// Execution.
	s.mux.HandleFunc("GET /api/projects/{project}/tasks/{task}/attempts/{id}/execution-processes", cors(s.handleGetProcesses))
	s.mux.HandleFunc("GET /api/projects/{project}/execution-processes/{process}", cors(s.handleGetProcess))
	s.mux.HandleFunc("GET /api/projects/{project}/tasks/{task}/attempts/{id}/logs", cors(s.handleGetLogs))
	s.mux.HandleFunc("GET /api/projects/{project}/tasks/{task}/attempts/{id}/state", cors(s.handleGetState))
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/stop", cors(s.handleStopAll))
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/execution-processes/{process}/stop", cors(s.handleStopProcess))

	// Git.
	s.mux.HandleFunc("GET /api/projects/{project}/tasks/{task}/attempts/{id}/diff", cors(s.handleDiff))
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/delete-file", cors(s.handleDeleteFile))
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/rebase", cors(s.handleRebase))
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/merge", cors(s.handleMerge))
	s.mux.HandleFunc("GET /api/projects/{project}/tasks/{task}/attempts/{id}/branch-status", cors(s.handleBranchStatus))
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/create-pr", cors(s.handleCreatePR))

	// Workflow.
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/follow-up", cors(s.handleFollowUp))
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/start-dev-server", cors(s.handleStartDevServer))
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/approve-plan", cors(s.handleApprovePlan))

	// Editor.
	s.mux.HandleFunc("POST /api/projects/{project}/tasks/{task}/attempts/{id}/open-editor", cors(s.handleOpenEditor))

	// Live log/state streaming.
	s.mux.Handle("/api/ws", s.wsHandler)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]string{"status": "ok"})
}

// parseAddr extracts host and port from an address string like ":8080"
// or "127.0.0.1:8080".
func parseAddr(addr string) (host string, port int, err error) {
	if strings.HasPrefix(addr, ":") {
		port, err = strconv.Atoi(addr[1:])
		return "", port, err
	}
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err = strconv.Atoi(p)
	return h, port, err
}

// findAvailablePort tries to find an available port starting from
// basePort, returning a listener already bound to it.
func findAvailablePort(host string, basePort, maxAttempts int) (net.Listener, int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := basePort + i
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("no available port in range %d-%d", basePort, basePort+maxAttempts-1)
}

// Start starts the server, blocking until it exits or errors.
func (s *Server) Start() error {
	return s.StartContext(context.Background())
}

// StartContext starts the server with a context controlling graceful
// shutdown: when ctx is canceled, the listener stops accepting new
// connections and in-flight requests get up to 5s to finish.
func (s *Server) StartContext(ctx context.Context) error {
	host, basePort, err := parseAddr(s.addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", s.addr, err)
	}

	ln, actualPort, err := findAvailablePort(host, basePort, s.maxPortAttempts)
	if err != nil {
		return err
	}
	if actualPort != basePort {
		s.logger.Info("port in use, using alternative", "requested", basePort, "actual", actualPort)
	}

	s.serverCtxCancel()
	s.serverCtx, s.serverCtxCancel = context.WithCancel(ctx)

	server := &http.Server{Handler: s.mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown error", "error", err)
		}
	}()

	s.logger.Info("starting integration surface", "addr", ln.Addr().String())
	return server.Serve(ln)
}
