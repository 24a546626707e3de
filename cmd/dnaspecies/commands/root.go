// Package commands implements the dnaspecies CLI.
package commands

import (
	"log/slog"
	"os"

	"github.com/kiranshivaraju/dnaspecies/internal/backend"
	"github.com/kiranshivaraju/dnaspecies/internal/config"
	"github.com/kiranshivaraju/dnaspecies/internal/workflow"
	"github.com/spf13/cobra"
)

// ClientFactory builds the backend client for a loaded configuration.
type ClientFactory func(cfg *config.ClientConfig) backend.Client

func httpClient(cfg *config.ClientConfig) backend.Client {
	return backend.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
}

// app carries state shared by all subcommands.
type app struct {
	newClient ClientFactory
	apiBase   string
	verbose   bool

	cfg    *config.ClientConfig
	client backend.Client
}

// NewRootCmd creates the root command talking to the configured backend over HTTP.
func NewRootCmd() *cobra.Command {
	return newRootCmd(httpClient)
}

func newRootCmd(factory ClientFactory) *cobra.Command {
	a := &app{newClient: factory}

	rootCmd := &cobra.Command{
		Use:           "dnaspecies",
		Short:         "Submit DNA sequence files for species identification",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.apiBase, "api-base", "", "prediction API base URL (overrides API_BASE)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log progress to stderr")

	rootCmd.AddCommand(
		newPredictCommand(a),
		newModelsCommand(a),
		newDownloadCommand(a),
	)

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	if a.apiBase != "" {
		os.Setenv("API_BASE", a.apiBase)
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.client = a.newClient(cfg)
	return nil
}

// userError shows the workflow's user-facing message while keeping the cause.
type userError struct{ err error }

func (e userError) Error() string { return workflow.Message(e.err) }
func (e userError) Unwrap() error { return e.err }
