// Package cmd defines the djrag command line. With no subcommand it starts
// the terminal UI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"djrag/api"
	"djrag/config"
	"djrag/health"
	"djrag/logger"
	appmodel "djrag/model"
	"djrag/storage"
	"djrag/telemetry"
	"djrag/ui"
)

// errUnhealthy makes the process exit 1 without printing anything more.
var errUnhealthy = errors.New("backend unreachable")

type rootOptions struct {
	apiURL  string
	version string
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	root := &cobra.Command{
		Use:   "djrag",
		Short: "Ask questions about your documents from the terminal",
		Long: `djrag is a terminal client for the DJ Rag document question-answering service.

Run it without arguments to open the chat interface. Upload PDF, Word, Excel,
CSV, PowerPoint or text files to a chat session, or paste text into it, then
ask questions. Answers cite the passages they were drawn from and report how
long they took, how many tokens they used and what they cost.

The subcommands expose the same operations for scripts.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "backend base URL (overrides config and "+config.EnvAPIBaseURL+")")

	root.AddCommand(
		newSessionsCmd(opts),
		newMessagesCmd(opts),
		newAskCmd(opts),
		newUploadCmd(opts),
		newIngestCmd(opts),
		newHealthCmd(opts),
	)

	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCmd(version).ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func runTUI(ctx context.Context, opts *rootOptions) error {
	cfg, err := config.Load()
	if err != nil {
		showStartupError("Configuration Error", err)
		return err
	}
	if opts.apiURL != "" {
		cfg.APIBaseURL = opts.apiURL
	}

	if err := logger.Configure(logger.Options{DataDir: cfg.DataDir(), Debug: config.CheckDebug()}); err != nil {
		showStartupError("Logging Error", err)
		return err
	}
	defer func() { _ = logger.Close() }()

	log := logger.With("main")
	log.Info().Str("version", opts.version).Str("api", cfg.BaseURL()).Msg("starting")

	shutdownTracing, err := telemetry.Init(ctx, cfg.DataDir(), opts.version, config.CheckTrace())
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	client, err := api.NewClient(cfg.BaseURL(), &http.Client{Timeout: cfg.RequestTimeout})
	if err != nil {
		showStartupError("Configuration Error", err)
		return err
	}

	poller := health.NewPoller(client, health.Options{
		Interval: cfg.HealthInterval,
		Timeout:  cfg.HealthTimeout,
		Settle:   health.DefaultOptions().Settle,
	})

	// The snapshot is an accelerator; the app runs without it.
	var snapshot appmodel.Snapshotter
	store, err := storage.NewSnapshotStore(cfg.DataDir())
	if err != nil {
		log.Warn().Err(err).Msg("snapshot store unavailable")
	} else {
		defer func() { _ = store.Close() }()
		snapshot = store
	}

	m := appmodel.NewModel(cfg, client, poller, snapshot, opts.version)
	defer m.Shutdown()
	if err := m.Restore(); err != nil {
		log.Warn().Err(err).Msg("failed to restore snapshot")
	}

	go poller.Run(m.Context())

	p := tea.NewProgram(ui.NewAppView(m), tea.WithAltScreen(), tea.WithContext(m.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI: %w", err)
	}

	log.Info().Msg("exited")
	return nil
}

func showStartupError(title string, err error) {
	p := tea.NewProgram(ui.NewErrorModal(title, err.Error()), tea.WithAltScreen())
	if _, runErr := p.Run(); runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
	}
}
