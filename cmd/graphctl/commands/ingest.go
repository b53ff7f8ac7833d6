package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/scilab-ai/scilab/backend/internal/bootstrap"
	"github.com/scilab-ai/scilab/backend/internal/ingest"

	"github.com/spf13/cobra"
)

var (
	ingestMaxTriplets int
	ingestDocumentID  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf>...",
	Short: "Ingest PDFs into the knowledge graph",
	Long: `Parse, chunk and extract triplets from each PDF, save them to the graph
store and rebuild the community summaries.

Examples:
  graphctl ingest paper.pdf
  graphctl ingest --max-triplets 5 a.pdf b.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestDocumentID != "" && len(args) > 1 {
			return fmt.Errorf("--id needs exactly one file")
		}
		return withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				up, err := c.Pipeline.Registry().Save(ingestDocumentID, path, content)
				if err != nil {
					return err
				}
				res, err := c.Pipeline.Ingest(ctx, up.DocumentID, ingest.Options{
					MaxTripletsPerChunk: ingestMaxTriplets,
				})
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				printf(cmd.OutOrStdout(), "%s\t%s\tchunks=%d triplets=%d communities=%d\n",
					res.DocumentID, path, res.ChunkCount, res.TripletCount, res.CommunityCount)
			}
			return nil
		})
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestMaxTriplets, "max-triplets", 0, "triplets to extract per chunk (default from MAX_TRIPLETS_PER_CHUNK)")
	ingestCmd.Flags().StringVar(&ingestDocumentID, "id", "", "document id (default: content hash)")
}
