package indexer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/cbir/internal/constants"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// Precompute ranks every image of a feature space against all others with
// the uniform weight. The result is the ranking cache of one method.
func Precompute(ctx context.Context, space *features.Matrix, opts Options) (database.Rankings, error) {
	return precompute(ctx, space, opts, retrieval.Rank)
}

type rankFunc func(space *features.Matrix, queryID int, w retrieval.Weights) ([]retrieval.Result, error)

// precompute stops every remaining worker on the first ranking error.
func precompute(ctx context.Context, space *features.Matrix, opts Options, rank rankFunc) (database.Rankings, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = constants.WorkerPoolSize
	}

	ids := space.IDs()
	w := retrieval.Uniform(space.Dim())
	out := make(database.Rankings, len(ids))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		done     int64
		firstErr error
		errOnce  sync.Once
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	sem := make(chan struct{}, workers)
	for _, id := range ids {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			results, err := rank(space, id, w)
			if err != nil {
				fail(fmt.Errorf("rank image %d: %w", id, err))
				return
			}

			mu.Lock()
			out[id] = results
			mu.Unlock()

			n := atomic.AddInt64(&done, 1)
			if opts.Progress != nil {
				opts.Progress(int(n), len(ids))
			}
		}(id)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("precompute cancelled: %w", err)
	}
	return out, nil
}
