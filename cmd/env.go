package cmd

import (
	"context"
	"io"
	"net/http"
	"os"

	"golang.org/x/term"

	"djrag/api"
	"djrag/config"
	"djrag/logger"
	appmodel "djrag/model"
	"djrag/telemetry"
)

const defaultWidth = 80

// cliEnv is what a subcommand needs to talk to the backend.
type cliEnv struct {
	cfg    *config.Config
	client *api.Client

	shutdownTracing func()
}

// setup loads configuration for a subcommand. Warnings and errors are
// mirrored to stderr. Callers must close the returned env.
func setup(ctx context.Context, opts *rootOptions) (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.apiURL != "" {
		cfg.APIBaseURL = opts.apiURL
	}

	if err := logger.Configure(logger.Options{
		DataDir: cfg.DataDir(),
		Debug:   config.CheckDebug(),
		Stderr:  true,
	}); err != nil {
		return nil, err
	}

	shutdownTracing, err := telemetry.Init(ctx, cfg.DataDir(), opts.version, config.CheckTrace())
	if err != nil {
		logger.With("cli").Warn().Err(err).Msg("tracing disabled")
		shutdownTracing = func() {}
	}

	client, err := api.NewClient(cfg.BaseURL(), &http.Client{Timeout: cfg.RequestTimeout})
	if err != nil {
		shutdownTracing()
		_ = logger.Close()
		return nil, err
	}

	return &cliEnv{cfg: cfg, client: client, shutdownTracing: shutdownTracing}, nil
}

// model returns a model with sessionID selected. No poller or snapshot is
// attached; subcommands are one-shot.
func (e *cliEnv) model(sessionID string) *appmodel.Model {
	m := appmodel.NewModel(e.cfg, e.client, nil, nil, "")
	m.SelectSession(sessionID)
	return m
}

// close flushes pending spans and the log file.
func (e *cliEnv) close() {
	e.shutdownTracing()
	_ = logger.Close()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}
