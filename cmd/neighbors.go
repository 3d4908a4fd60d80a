package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/database/postgres"
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/spf13/cobra"
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <image-id>",
	Short: "Show approximate nearest neighbours of an image",
	Long: `Show the approximate nearest neighbours of an image in the normalized
feature space, using uniform weights.

With the PostgreSQL backend the search runs in the database through the
pgvector L1 operator; otherwise an in-memory HNSW graph is built. Distances
are always recomputed exactly, so they match 'cbir rank --method feedback'.

Examples:
  cbir neighbors 12 --k 5`,
	Args: cobra.ExactArgs(1),
	RunE: runNeighbors,
}

func init() {
	rootCmd.AddCommand(neighborsCmd)

	neighborsCmd.Flags().Int("k", 10, "Number of neighbours")
	neighborsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	id, err := parseImageID(args[0])
	if err != nil {
		return err
	}
	k := mustGetInt(cmd, "k")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	release, err := initBackend(cfg)
	if err != nil {
		return err
	}
	defer release()

	ctx := context.Background()
	var results []retrieval.Result
	if pool := postgres.GetGlobalPool(); pool != nil {
		results, err = postgres.NewCorpusRepository(pool).NearestNeighbors(ctx, database.MatrixNormalized, id, k)
		if err != nil {
			return err
		}
	} else {
		engine, err := loadEngine(ctx, cfg)
		if err != nil {
			return err
		}
		index := database.NewNeighborIndex()
		if err := index.Build(engine.Snapshot().Normalized); err != nil {
			return fmt.Errorf("building HNSW index: %w", err)
		}
		if results, err = index.Neighbors(id, k); err != nil {
			return err
		}
	}

	if jsonOutput {
		return outputJSON(results)
	}

	fmt.Printf("\nApproximate neighbours of image %d\n\n", id)
	printResults(results, nil)
	return nil
}
