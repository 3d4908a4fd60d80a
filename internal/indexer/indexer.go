// Package indexer builds the corpus offline: it extracts histograms from every
// image, assembles the feature matrix and normalizes it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/cbir/internal/constants"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/histogram"
	"github.com/kozaktomas/cbir/internal/metrics"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// PathResolver maps an image identifier to the path of its file.
type PathResolver func(id int) string

// Options configures a build.
type Options struct {
	Workers  int                   // parallel extraction workers, defaults to constants.WorkerPoolSize
	Progress func(done, total int) // called after each image, may be called concurrently
}

// ImageError reports the image a build failed on.
type ImageError struct {
	ImageID int
	Path    string
	Err     error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %d (%s): %v", e.ImageID, e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// Corpus is the result of a build.
type Corpus struct {
	Histograms []database.StoredHistogram
	Features   *features.Matrix
	Normalized *features.Matrix
	Stats      features.ColumnStats
	Duration   time.Duration
}

// Build extracts the histograms of all images and derives both feature
// matrices. The first unreadable image aborts the whole build; rows are
// never dropped.
func Build(ctx context.Context, resolve PathResolver, ids []int, opts Options) (*Corpus, error) {
	if len(ids) == 0 {
		return nil, features.ErrEmptyCorpus
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = constants.WorkerPoolSize
	}

	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stored := make([]database.StoredHistogram, len(ids))
	vectors := make([][]float64, len(ids))

	var (
		done     int64
		firstErr error
		errOnce  sync.Once
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	sem := make(chan struct{}, workers)
	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			path := resolve(id)
			h, err := histogram.ExtractFile(path)
			if err == nil {
				vectors[i], err = h.Fractions()
			}
			if err != nil {
				metrics.IndexedImagesTotal.WithLabelValues("error").Inc()
				fail(&ImageError{ImageID: id, Path: path, Err: err})
				return
			}

			stored[i] = database.StoredHistogram{ImageID: id, Path: path, Histograms: h, CreatedAt: time.Now()}
			metrics.IndexedImagesTotal.WithLabelValues("ok").Inc()

			n := atomic.AddInt64(&done, 1)
			if opts.Progress != nil {
				opts.Progress(int(n), len(ids))
			}
		}(i, id)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build cancelled: %w", err)
	}

	raw, err := features.New(ids, histogram.ColumnNames(), vectors)
	if err != nil {
		return nil, fmt.Errorf("assemble feature matrix: %w", err)
	}
	normalized, stats := features.Normalize(raw)

	return &Corpus{
		Histograms: stored,
		Features:   raw,
		Normalized: normalized,
		Stats:      stats,
		Duration:   time.Since(start),
	}, nil
}

// Save persists histograms and both matrices. Ranking caches of the previous
// corpus are dropped first so they never outlive the matrices they came from.
func (c *Corpus) Save(ctx context.Context, w database.CorpusWriter) error {
	if err := w.ClearRankings(ctx); err != nil {
		return err
	}
	if err := w.SaveHistograms(ctx, c.Histograms); err != nil {
		return err
	}
	if err := w.SaveMatrix(ctx, database.MatrixFeatures, c.Features); err != nil {
		return err
	}
	if err := w.SaveMatrix(ctx, database.MatrixNormalized, c.Normalized); err != nil {
		return err
	}
	return nil
}

// Snapshot returns a retrieval snapshot of the freshly built corpus.
func (c *Corpus) Snapshot() *retrieval.Snapshot {
	paths := make(map[int]string, len(c.Histograms))
	for _, h := range c.Histograms {
		paths[h.ImageID] = h.Path
	}
	return &retrieval.Snapshot{
		Features:   c.Features,
		Normalized: c.Normalized,
		Paths:      paths,
		BuiltAt:    time.Now(),
	}
}

// LoadSnapshot reads a persisted corpus. Ranking caches are attached for
// every method that has one; missing caches are not an error.
func LoadSnapshot(ctx context.Context, r database.CorpusReader, methods []retrieval.MethodSpec) (*retrieval.Snapshot, error) {
	raw, err := r.LoadMatrix(ctx, database.MatrixFeatures)
	if err != nil {
		return nil, fmt.Errorf("load feature matrix: %w", err)
	}
	normalized, err := r.LoadMatrix(ctx, database.MatrixNormalized)
	if err != nil {
		return nil, fmt.Errorf("load normalized matrix: %w", err)
	}
	if err := normalized.Validate(); err != nil {
		return nil, fmt.Errorf("normalized matrix: %w", err)
	}

	paths := make(map[int]string, raw.Len())
	histograms, err := r.LoadHistograms(ctx)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("load histograms: %w", err)
	}
	for _, h := range histograms {
		paths[h.ImageID] = h.Path
	}

	rankings := make(map[retrieval.Method]map[int][]retrieval.Result)
	for _, m := range methods {
		if m.Feedback {
			continue
		}
		cached, err := r.LoadRankings(ctx, m.Name)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s rankings: %w", m.Name, err)
		}
		rankings[m.Name] = cached
	}

	return &retrieval.Snapshot{
		Features:   raw,
		Normalized: normalized,
		Paths:      paths,
		Rankings:   rankings,
		BuiltAt:    time.Now(),
	}, nil
}
