// Package aggregator folds histogram records from sampled shard files
// into one accumulator mapping per dataset.
package aggregator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/simprod/histagg/internal/histogram"
	"github.com/simprod/histagg/internal/observability"
	"github.com/simprod/histagg/internal/shardfile"
)

// Result maps histogram name to its merged record, covering every
// distinct name seen across all sampled shards.
type Result map[string]*histogram.Record

// fold merges one shard's records into the accumulator. A name not yet
// in the accumulator is inserted with a sample count of one.
func fold(acc Result, records map[string]*histogram.Record) error {
	for name, record := range records {
		existing, ok := acc[name]
		if !ok {
			inserted := record.Clone()
			inserted.SampleCount = 1
			acc[name] = inserted
			continue
		}

		merged, err := histogram.Merge(existing, record)
		if err != nil {
			return fmt.Errorf("histogram %q: %w", name, err)
		}
		acc[name] = merged
	}
	return nil
}

// foldResults merges a partial accumulator into another. Sample counts
// are summed rather than incremented, since both sides already carry
// provenance counts.
func foldResults(acc, partial Result) error {
	for name, record := range partial {
		existing, ok := acc[name]
		if !ok {
			acc[name] = record
			continue
		}

		merged, err := histogram.Merge(existing, record)
		if err != nil {
			return fmt.Errorf("histogram %q: %w", name, err)
		}
		merged.SampleCount = existing.SampleCount + record.SampleCount
		acc[name] = merged
	}
	return nil
}

// Aggregator loads shard files and folds them into a Result.
type Aggregator struct {
	Loader shardfile.Loader
	Logger *observability.CoreLogger

	// Workers bounds the number of shards loaded and folded
	// concurrently. Values below two reproduce the reference
	// single-threaded fold. Because the merge operation is pure,
	// commutative, and associative, the result is identical for any
	// worker count and any shard order.
	Workers int
}

// Aggregate folds every given shard file into one accumulator.
//
// The first load or merge failure aborts the whole run; a silently
// skipped shard would understate sample statistics.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	files []string,
) (Result, error) {
	if a.Workers <= 1 {
		return a.aggregateSequential(files)
	}
	return a.aggregateParallel(ctx, files)
}

func (a *Aggregator) aggregateSequential(files []string) (Result, error) {
	acc := Result{}
	for _, path := range files {
		records, err := a.Loader.Load(path)
		if err != nil {
			return nil, err
		}
		if err := fold(acc, records); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		a.Logger.Debug("aggregator: folded shard", "path", path)
	}
	return acc, nil
}

// aggregateParallel partitions shards across workers, folds each
// partition into a private partial accumulator, then folds the partials
// together.
func (a *Aggregator) aggregateParallel(
	ctx context.Context,
	files []string,
) (Result, error) {
	paths := make(chan string)

	var mu sync.Mutex
	var partials []Result

	g, ctx := errgroup.WithContext(ctx)
	for range a.Workers {
		g.Go(func() error {
			partial := Result{}
			for path := range paths {
				records, err := a.Loader.Load(path)
				if err != nil {
					return err
				}
				if err := fold(partial, records); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				a.Logger.Debug("aggregator: folded shard", "path", path)
			}

			mu.Lock()
			partials = append(partials, partial)
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		defer close(paths)
		for _, path := range files {
			select {
			case paths <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	acc := Result{}
	for _, partial := range partials {
		if err := foldResults(acc, partial); err != nil {
			return nil, err
		}
	}
	return acc, nil
}
