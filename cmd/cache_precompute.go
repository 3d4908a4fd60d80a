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
	"github.com/kozaktomas/cbir/internal/retrieval"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var cachePrecomputeCmd = &cobra.Command{
	Use:   "precompute",
	Short: "Precompute full rankings for the histogram methods",
	Long: `Rank every image of the corpus against every other image and store the
results, so that queries with the histogram methods are answered from the
cache.

Methods that support relevance feedback are always ranked on demand and
cannot be cached.

Examples:
  # Cache all histogram methods
  cbir cache precompute

  # Cache a single method
  cbir cache precompute --method intensity`,
	Args: cobra.NoArgs,
	RunE: runCachePrecompute,
}

func init() {
	cacheCmd.AddCommand(cachePrecomputeCmd)

	cachePrecomputeCmd.Flags().String("method", "", "Method to precompute (default: all methods without feedback)")
	cachePrecomputeCmd.Flags().Int("workers", 0, "Number of parallel workers (defaults to CBIR_WORKERS)")
}

func runCachePrecompute(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	only := retrieval.Method(mustGetString(cmd, "method"))
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

	engine, err := loadEngine(ctx, cfg)
	if err != nil {
		return err
	}

	var methods []retrieval.MethodSpec
	if only != "" {
		spec, err := engine.Method(only)
		if err != nil {
			return err
		}
		if spec.Feedback {
			return fmt.Errorf("method %s supports feedback and is not cached", only)
		}
		methods = append(methods, spec)
	} else {
		for _, spec := range engine.Methods() {
			if !spec.Feedback {
				methods = append(methods, spec)
			}
		}
	}

	writer, err := database.GetCorpusWriter(ctx)
	if err != nil {
		return err
	}

	for _, spec := range methods {
		space, err := engine.Space(spec.Name)
		if err != nil {
			return err
		}

		bar := progressbar.NewOptions(space.Len(),
			progressbar.OptionSetDescription(fmt.Sprintf("Ranking (%s)", spec.Label)),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("queries"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)

		start := time.Now()
		rankings, err := indexer.Precompute(ctx, space, indexer.Options{
			Workers:  workers,
			Progress: func(done, total int) { bar.Add(1) },
		})
		bar.Finish()
		fmt.Println()
		if err != nil {
			return fmt.Errorf("precomputing %s: %w", spec.Name, err)
		}

		if err := writer.SaveRankings(ctx, spec.Name, rankings); err != nil {
			return fmt.Errorf("saving %s rankings: %w", spec.Name, err)
		}
		fmt.Printf("Cached %d rankings for %s in %s\n", len(rankings), spec.Name, formatDuration(time.Since(start)))
	}
	return nil
}
