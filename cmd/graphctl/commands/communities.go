package commands

import (
	"context"
	"slices"

	"github.com/scilab-ai/scilab/backend/internal/bootstrap"

	"github.com/spf13/cobra"
)

var communitiesRebuild bool

var communitiesCmd = &cobra.Command{
	Use:   "communities",
	Short: "Print the community summaries",
	Long: `Print one summary per community, building them when none exist.

Examples:
  graphctl communities
  graphctl communities --rebuild`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
			if communitiesRebuild || !c.Store.HasCommunities() {
				if err := c.Store.BuildCommunities(ctx); err != nil {
					return err
				}
			}
			summaries, err := c.Store.GetCommunitySummaries(ctx)
			if err != nil {
				return err
			}

			members := make(map[int][]string)
			for name, ids := range c.Store.EntityCommunities() {
				for _, id := range ids {
					members[id] = append(members[id], name)
				}
			}

			ids := make([]int, 0, len(summaries))
			for id := range summaries {
				ids = append(ids, id)
			}
			slices.Sort(ids)

			out := cmd.OutOrStdout()
			for _, id := range ids {
				names := members[id]
				slices.Sort(names)
				printf(out, "## Community %d (%d entities)\n%v\n\n%s\n\n", id, len(names), names, summaries[id])
			}
			if len(ids) == 0 {
				printf(out, "No communities. Ingest a document first.\n")
			}
			return nil
		})
	},
}

func init() {
	communitiesCmd.Flags().BoolVar(&communitiesRebuild, "rebuild", false, "recluster and resummarize before printing")
}
