package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:   "rank <image-id>",
	Short: "Rank the corpus by similarity to a query image",
	Long: `Rank every other image of the corpus by its distance to the query image,
using uniform feature weights. Smaller distances mean more similar images.

Methods:
  intensity   - intensity histogram only
  color-code  - color-code histogram only
  feedback    - both histograms, normalized (the method used for relevance feedback)

Examples:
  # Top 20 images closest to image 12
  cbir rank 12

  # Color-code histogram only, as JSON
  cbir rank 12 --method color-code --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("method", string(retrieval.MethodFeedback), "Retrieval method")
	rankCmd.Flags().Int("limit", 20, "Maximum number of results (0 = all)")
	rankCmd.Flags().Bool("json", false, "Output as JSON")
}

// RankOutput represents the JSON output of the rank command
type RankOutput struct {
	QueryID int                `json:"query_id"`
	Method  retrieval.Method   `json:"method"`
	Source  string             `json:"source"`
	Total   int                `json:"total"`
	Results []retrieval.Result `json:"results"`
}

func runRank(cmd *cobra.Command, args []string) error {
	queryID, err := parseImageID(args[0])
	if err != nil {
		return err
	}
	method := retrieval.Method(mustGetString(cmd, "method"))
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	release, err := initBackend(cfg)
	if err != nil {
		return err
	}
	defer release()

	engine, err := loadEngine(context.Background(), cfg)
	if err != nil {
		return err
	}

	results, source, err := engine.Rank(method, queryID)
	if err != nil {
		return err
	}
	total := len(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if jsonOutput {
		return outputJSON(RankOutput{
			QueryID: queryID,
			Method:  method,
			Source:  source,
			Total:   total,
			Results: results,
		})
	}

	fmt.Printf("\nQuery image %d, method %s (%s), showing %d of %d\n\n", queryID, method, source, len(results), total)
	printResults(results, nil)
	return nil
}

// printResults prints a ranking as a table, marking relevant images.
func printResults(results []retrieval.Result, relevant map[int]bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tIMAGE\tDISTANCE\tRELEVANT")
	fmt.Fprintln(w, "----\t-----\t--------\t--------")
	for i, r := range results {
		mark := ""
		if relevant[r.ImageID] {
			mark = "*"
		}
		fmt.Fprintf(w, "%d\t%d\t%.6f\t%s\n", i+1, r.ImageID, r.Distance, mark)
	}
	w.Flush()
}
