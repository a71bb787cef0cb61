package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/orc/internal/api"
	"github.com/randalmurphal/orc/internal/config"
	"github.com/randalmurphal/orc/internal/coordinator"
	"github.com/randalmurphal/orc/internal/events"
	"github.com/randalmurphal/orc/internal/executor"
	"github.com/randalmurphal/orc/internal/gitrepo"
	"github.com/randalmurphal/orc/internal/store"
	"github.com/randalmurphal/orc/internal/store/driver"
	"github.com/randalmurphal/orc/internal/supervisor"
)

// newServeCmd creates the serve command, wiring every lifecycle-engine
// component (C1-C8) and handing the assembled stack to the Integration
// Surface (C6).
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Integration Surface",
		Long: `Start the orc Integration Surface: the HTTP API and WebSocket stream
that front the attempt lifecycle engine.

If the requested port is in use, the server will try subsequent ports
up to max-port-attempts times (default: 10). For example, if port 8080
is busy, it will try 8081, 8082, etc.

Example:
  orc serve              # Start on default port 8080
  orc serve --port 3000  # Start on custom port`,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")
			maxPortAttempts, _ := cmd.Flags().GetInt("max-port-attempts")
			repoPath, _ := cmd.Flags().GetString("repo")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Addr = fmt.Sprintf(":%d", port)
			}
			if cmd.Flags().Changed("max-port-attempts") {
				cfg.Server.MaxPortAttempts = maxPortAttempts
			}
			if repoPath != "" {
				cfg.RepoPath = repoPath
			}

			logger := slog.Default()

			dialect, err := driver.ParseDialect(cfg.Store.Dialect)
			if err != nil {
				return fmt.Errorf("parse store dialect: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			db, err := store.Open(ctx, dialect, cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			worktrees := gitrepo.NewManager(cfg.RepoPath, cfg.WorktreeDir)
			sup := supervisor.New(db, logger)
			registry := executor.NewRegistry()
			publisher := events.NewPersistentPublisher(db, "coordinator", logger)
			coord := coordinator.New(db, worktrees, sup, registry, events.NewPublishHelper(publisher), projectConfigResolver(db), logger)

			server := api.New(&api.Config{
				Addr:            cfg.Server.Addr,
				Logger:          logger,
				MaxPortAttempts: cfg.Server.MaxPortAttempts,
				DB:              db,
				Coord:           coord,
				Worktrees:       worktrees,
				Publisher:       publisher,
			})

			fmt.Printf("Starting Integration Surface (port %d, will try up to %d ports if busy)...\n", port, cfg.Server.MaxPortAttempts)
			fmt.Println("Press Ctrl+C to stop")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println("\nShutting down...")
				publisher.Close()
				cancel()
			}()

			return server.StartContext(ctx)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "port to listen on")
	cmd.Flags().Int("max-port-attempts", 10, "max ports to try if initial port is busy")
	cmd.Flags().String("repo", "", "path to the git repository to manage attempts for (default from config)")

	return cmd
}

// projectConfigResolver adapts a project's persisted setup/dev scripts to
// the Coordinator's ConfigResolver contract (§4.6), so attempt
// provisioning and dev-server startup honor per-project configuration.
func projectConfigResolver(db *store.DB) coordinator.ConfigResolver {
	return func(ctx context.Context, projectID string) (coordinator.ProjectConfig, error) {
		p, err := db.FindProject(ctx, projectID)
		if err != nil || p == nil {
			return coordinator.ProjectConfig{}, nil
		}
		return coordinator.ProjectConfig{
			SetupScript: p.SetupScript,
			DevCommand:  p.DevScript,
		}, nil
	}
}
