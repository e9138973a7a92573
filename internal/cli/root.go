// Package cli provides the command-line interface for clipforge.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/clipforge/internal/batch"
	"github.com/raphaelgruber/clipforge/internal/client"
	"github.com/raphaelgruber/clipforge/internal/config"
	"github.com/raphaelgruber/clipforge/internal/notify"
	"github.com/raphaelgruber/clipforge/internal/service"
	"github.com/raphaelgruber/clipforge/internal/store"
	"github.com/raphaelgruber/clipforge/internal/tracker"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose     bool
	serverFlag  string
	projectFlag string

	// Global config and clients
	cfg       config.Config
	logger    *slog.Logger
	apiClient *client.Client
	kv        store.Store
	cleanups  []func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "clipforge",
	Short: "Operate the short-video generation pipeline",
	Long: `Clipforge drives a short-video generation backend from the terminal.

Generate ideas for a persona, run the script, caption, prompt, image and
video stages of each idea, watch them complete, then assemble, moderate,
approve and publish a post draft.

Configuration is read from ~/.config/clipforge/config.yaml (or the file in
CLIPFORGE_CONFIG) and CLIPFORGE_* environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if serverFlag != "" {
			cfg.ServerURL = serverFlag
		}
		if projectFlag != "" {
			cfg.ProjectID = projectFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var closeLog func() error
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.Levels(verbose))
		slog.SetDefault(logger)
		cleanups = append(cleanups, closeLog)
		logger.Debug("config loaded", "source", cfg.Source, "server", cfg.ServerURL, "state_backend", cfg.StateBackend)

		opts := []client.Option{client.WithTimeout(cfg.ClientTimeout)}
		if cfg.APIToken != "" {
			opts = append(opts, client.WithToken(cfg.APIToken))
		}
		apiClient = client.New(cfg.ServerURL, opts...)

		kv, err = openStore(cmd.Context())
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: cleanup failed: %v\n", err)
			}
		}
		cleanups = nil
	},
}

// openStore opens the configured client-side state backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		rs, err := store.NewRedisStore(ctx, cfg.RedisURL, store.DefaultKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("open redis state: %w", err)
		}
		cleanups = append(cleanups, rs.Close)
		return rs, nil
	case config.StateBackendMemory:
		return store.NewMemoryStore(), nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.StateFile), 0755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		return store.NewFileStore(cfg.StateFile), nil
	}
}

// requireProject returns the project id from --project or config.
func requireProject() (string, error) {
	if cfg.ProjectID == "" {
		return "", fmt.Errorf("no project: pass --project or set CLIPFORGE_PROJECT")
	}
	return cfg.ProjectID, nil
}

// services bundles what the commands need for one project.
type services struct {
	workspace  *service.Workspace
	generation *service.GenerationService
	drafts     *service.DraftService
	notices    *notify.Center
	bookmarks  *store.Bookmarks
}

// newServices wires the workspace, generation and draft services.
// projectID may be empty for commands that only touch single ideas.
func newServices(projectID string) *services {
	notices := notify.NewCenter(cfg.NoticeTTL, logger)
	bookmarks := store.NewBookmarks(kv)

	opts := service.WorkspaceOptions{
		ProjectID:    projectID,
		Backend:      apiClient,
		Detector:     batch.NewDetector(),
		PollInterval: cfg.PollInterval,
		RunLogLimit:  cfg.RunLogLimit,
		Logger:       logger,
	}
	if projectID != "" {
		opts.Bookmarks = bookmarks
	}
	if cfg.EventsEnabled {
		opts.Events = apiClient
	}
	ws := service.NewWorkspace(opts)

	return &services{
		workspace:  ws,
		generation: service.NewGenerationService(apiClient, ws, tracker.New(), notices, logger),
		drafts:     service.NewDraftService(apiClient, notices, logger),
		notices:    notices,
		bookmarks:  bookmarks,
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Commands stop when ctx is cancelled.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "backend URL (overrides CLIPFORGE_SERVER_URL)")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "project id (overrides CLIPFORGE_PROJECT)")

	// Add subcommands
	rootCmd.AddCommand(ideasCmd)
	rootCmd.AddCommand(ideaCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(draftCmd)
}
