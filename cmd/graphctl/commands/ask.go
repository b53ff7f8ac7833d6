package commands

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/scilab-ai/scilab/backend/internal/bootstrap"
	"github.com/scilab-ai/scilab/backend/pkg/query"

	"github.com/spf13/cobra"
)

var (
	askTrace bool
	askTopK  int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the community summaries",
	Long: `Answer a question from the community summaries. Communities are built
first when the store has none.

Examples:
  graphctl ask "Which methods does the paper compare?"
  graphctl ask --trace --top-k 5 "What is Xcos?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
			if !c.Store.HasCommunities() {
				if err := c.Store.BuildCommunities(ctx); err != nil {
					return err
				}
			}

			var (
				trace  *query.QueryTrace
				tracer query.Tracer
			)
			if askTrace {
				trace = query.NewQueryTrace()
				tracer = trace
			}

			answer, err := c.Engine.AnswerTopK(ctx, question, askTopK, tracer)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", answer)

			if trace != nil {
				out, err := json.MarshalIndent(trace.Snapshot(), "", "  ")
				if err != nil {
					return err
				}
				printf(cmd.ErrOrStderr(), "%s\n", out)
			}
			return nil
		})
	},
}

func init() {
	askCmd.Flags().BoolVar(&askTrace, "trace", false, "print retrieved entities and used communities to stderr")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "entities to retrieve (default from SIMILARITY_TOP_K)")
}
