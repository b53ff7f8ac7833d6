package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/scilab-ai/scilab/backend/internal/bootstrap"
	"github.com/scilab-ai/scilab/backend/internal/config"
	"github.com/scilab-ai/scilab/backend/pkg/logger"
	"github.com/scilab-ai/scilab/backend/pkg/logger/console"

	"github.com/spf13/cobra"
)

var (
	verbose bool

	// build is replaced in tests.
	build = func(ctx context.Context, cfg config.Config) (*bootstrap.Components, error) {
		return bootstrap.Build(ctx, bootstrap.Params{Config: cfg})
	}
)

var rootCmd = &cobra.Command{
	Use:   "graphctl",
	Short: "Knowledge graph command line tool",
	Long: `Knowledge graph command line tool.

Ingests PDFs into the configured graph store, builds the community
summaries and answers questions against them. Settings are read from the
environment (and .env) exactly like the server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(console.New(console.Options{
			Debug: verbose,
		}))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(communitiesCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// withComponents builds the graph components for one command run.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *bootstrap.Components) error) error {
	cfg := config.Load()
	if verbose {
		cfg.Debug = true
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
