// Package cli wires the logdoctor commands: analyze runs the pipeline,
// the rest answer questions about stored runs.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pale-fire/logdoctor/internal/config"
	"github.com/pale-fire/logdoctor/internal/logging"
	"github.com/pale-fire/logdoctor/internal/output"
	"github.com/pale-fire/logdoctor/internal/store"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	cfgFile   string
	storePath string
	logLevel  string
	asJSON    bool
}

// Execute runs the command line. The context cancels long-running commands
// on shutdown signals.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the full command tree. Each call returns an independent
// tree, so command state never leaks between invocations.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "logdoctor",
		Short: "Debug distributed failures from logs",
		Long: `Logdoctor ingests logs from files, directories, streams, and containers,
normalizes them into events, detects errors, correlates related failures
across services, and answers timeline questions about stored runs.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default ./.logdoctor/config.yaml)")
	pf.StringVar(&opts.storePath, "store", "", "result store path (overrides config)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides config)")
	pf.BoolVar(&opts.asJSON, "json", false, "emit NDJSON instead of text")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newTimelineCmd(opts),
		newErrorsCmd(opts),
		newExplainCmd(opts),
		newSuggestFixCmd(opts),
		newSourcesCmd(opts),
		newRunsCmd(opts),
	)
	return cmd
}

// app is the shared command runtime: loaded config, an open store, and the
// renderer for the requested output format.
type app struct {
	cfg config.Config
	log zerolog.Logger
	st  *store.Store
	out output.Renderer
}

// openApp loads configuration, applies persistent flag overrides, and opens
// the result store. Callers must close the returned app.
func openApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	if opts.storePath != "" {
		cfg.Store.Path = opts.storePath
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logging.New(cfg.Log.Level)
	st, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg: cfg,
		log: log,
		st:  st,
		out: output.New(cmd.OutOrStdout(), opts.asJSON),
	}, nil
}

func (a *app) close() {
	_ = a.st.Close()
}

// latestRun returns the id of the newest stored run, for commands that
// default to the most recent analysis.
func (a *app) latestRun() (string, error) {
	runs, err := a.st.ListRuns(1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs stored yet, run analyze first")
	}
	return runs[0].ID, nil
}
