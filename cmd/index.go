package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/indexer"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Extract histograms and build the feature matrices",
	Long: `Read every image of the corpus, extract its intensity and color-code
histograms and store the raw and normalized feature matrices.

Images are looked up in CBIR_IMAGE_DIR using CBIR_PATH_PATTERN, identifiers
run from 1 to CBIR_CORPUS_SIZE. A single unreadable image aborts the build.

Examples:
  # Index the corpus with the default worker count
  cbir index

  # Use 16 workers and print a JSON summary
  cbir index --workers 16 --json`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Int("workers", 0, "Number of parallel workers (defaults to CBIR_WORKERS)")
	indexCmd.Flags().Bool("json", false, "Output summary as JSON")
}

// IndexSummary represents the JSON output of the index command
type IndexSummary struct {
	Images     int    `json:"images"`
	Features   int    `json:"features"`
	Backend    string `json:"backend"`
	DurationMs int64  `json:"duration_ms"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")
	workers := mustGetInt(cmd, "workers")
	if workers <= 0 {
		workers = cfg.Corpus.Workers
	}

	release, err := initBackend(cfg)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids := cfg.Corpus.IDs()
	fmt.Printf("Indexing %d images from %s with %d workers\n\n", len(ids), cfg.Corpus.ImageDir, workers)

	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetDescription("Extracting histograms"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	corpus, err := indexer.Build(ctx, cfg.Corpus.ImagePath, ids, indexer.Options{
		Workers:  workers,
		Progress: func(done, total int) { bar.Add(1) },
	})
	bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	writer, err := database.GetCorpusWriter(ctx)
	if err != nil {
		return err
	}
	saveStart := time.Now()
	if err := corpus.Save(ctx, writer); err != nil {
		return fmt.Errorf("failed to save corpus: %w", err)
	}

	if jsonOutput {
		return outputJSON(IndexSummary{
			Images:     corpus.Features.Len(),
			Features:   corpus.Features.Dim(),
			Backend:    database.BackendName(),
			DurationMs: corpus.Duration.Milliseconds(),
		})
	}

	fmt.Printf("Indexed %d images (%d features each) in %s\n",
		corpus.Features.Len(), corpus.Features.Dim(), formatDuration(corpus.Duration))
	fmt.Printf("Saved to %s backend in %s\n", database.BackendName(), formatDuration(time.Since(saveStart)))
	fmt.Println("\nRun 'cbir cache precompute' to cache rankings for the histogram methods.")
	return nil
}
