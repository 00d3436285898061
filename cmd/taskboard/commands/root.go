package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rtms/taskboard/internal/api"
	"github.com/rtms/taskboard/internal/config"
	"github.com/rtms/taskboard/internal/logging"
	"github.com/rtms/taskboard/internal/realtime"
	"github.com/rtms/taskboard/internal/session"
	"github.com/rtms/taskboard/internal/store"
	"github.com/rtms/taskboard/internal/suggest"
	"github.com/rtms/taskboard/internal/tui"
	"github.com/rtms/taskboard/pkg/models"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run `taskboard login` first")

// app wires configuration and services for a single command invocation.
type app struct {
	apiURL    string
	wsURL     string
	aiURL     string
	configDir string
	debug     bool

	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	sessions *session.Manager
	api      *api.Client
	ai       *suggest.Client
	closers  []io.Closer
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg := config.New(a.configDir)
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.wsURL != "" {
		cfg.WSURL = a.wsURL
	}
	if a.aiURL != "" {
		cfg.AIURL = a.aiURL
	}
	cfg.Debug = a.debug

	if err := cfg.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	logger, closer, err := logging.New(cfg.LogPath(), cfg.Debug)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closer)

	st, err := store.Open(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("failed to open local state: %w", err)
	}
	a.closers = append(a.closers, st)

	a.cfg = cfg
	a.logger = logger.With("command", cmd.Name())
	a.store = st
	a.sessions = session.NewManager(st, a.logger)
	a.api = api.New(cfg.APIURL, nil)
	a.ai = suggest.NewClient(cfg.AIURL, nil)

	a.logger.Debug("configured", "api", cfg.APIURL, "ws", cfg.WSURL, "ai", cfg.AIURL)
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}

// session returns the persisted session or errNotLoggedIn.
func (a *app) session(ctx context.Context) (models.Session, error) {
	s, err := a.sessions.Get(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return models.Session{}, errNotLoggedIn
	}
	return s, err
}

func (a *app) newFeed() tui.Feed {
	return realtime.New(a.cfg.WSURL, a.logger)
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taskboard",
		Short: "Real-time task dashboard in your terminal",
		Long: `taskboard is a terminal client for the real-time task management API.
It lists your tasks, refreshes them when the server pushes an update,
and offers AI task suggestions and an assistant chat.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, a)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", "", "Task API base URL (default $"+config.EnvAPIURL+" or "+config.DefaultAPIURL+")")
	flags.StringVar(&a.wsURL, "ws-url", "", "Push update channel URL (default $"+config.EnvWSURL+" or "+config.DefaultWSURL+")")
	flags.StringVar(&a.aiURL, "ai-url", "", "AI suggestion service URL (default $"+config.EnvAIURL+" or "+config.DefaultAIURL+")")
	flags.StringVar(&a.configDir, "config-dir", "", "Directory for local state and logs")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewLoginCommand(a))
	rootCmd.AddCommand(NewRegisterCommand(a))
	rootCmd.AddCommand(NewLogoutCommand(a))
	rootCmd.AddCommand(NewShowCommand(a))
	rootCmd.AddCommand(NewAddCommand(a))
	rootCmd.AddCommand(NewSuggestCommand(a))
	rootCmd.AddCommand(NewWatchCommand(a))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	rootCmd := newRootCommand(a)
	err := rootCmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cmd *cobra.Command, a *app) error {
	a.logger.Info("starting interactive client")
	err := tui.Run(cmd.Context(), tui.Deps{
		API:       a.api,
		Sessions:  a.sessions,
		NewFeed:   a.newFeed,
		Suggester: a.ai,
		Chatter:   a.ai,
		Snapshots: a.store,
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
