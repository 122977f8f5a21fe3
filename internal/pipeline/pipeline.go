// Package pipeline runs the full sample-and-aggregate flow for one
// dataset: sample shard files, fold them into an accumulator, persist
// the result as both output artifacts.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/simprod/histagg/internal/aggregator"
	"github.com/simprod/histagg/internal/artifacts"
	"github.com/simprod/histagg/internal/observability"
	"github.com/simprod/histagg/internal/sampler"
	"github.com/simprod/histagg/internal/shardfile"
)

// Params configures one aggregation run.
type Params struct {
	// Path is the dataset root directory holding per-job shard files.
	Path string

	// SamplePercentage is the fraction of shard files to aggregate,
	// in [0, 1].
	SamplePercentage float64

	// DestDir is the directory receiving both output artifacts.
	DestDir string

	// Force overwrites existing output artifacts.
	Force bool

	// AllowEmptySample makes a sample percentage of exactly zero legal,
	// producing empty artifacts.
	AllowEmptySample bool

	// Workers bounds the number of shards processed concurrently.
	// Zero or one means sequential processing.
	Workers int

	// Seed seeds shard selection for reproducible runs. Zero means a
	// time-seeded selection.
	Seed int64
}

// DatasetName derives the identifying name used for output artifact
// paths from the dataset root.
func (p *Params) DatasetName() string {
	return filepath.Base(strings.TrimRight(p.Path, string(filepath.Separator)))
}

// Run executes the pipeline. The run either produces both complete,
// mutually consistent artifacts or produces none.
func Run(
	ctx context.Context,
	fs afero.Fs,
	params Params,
	logger *observability.CoreLogger,
) error {
	s := &sampler.Sampler{
		FS:         fs,
		Fraction:   params.SamplePercentage,
		AllowEmpty: params.AllowEmptySample,
	}
	if params.Seed != 0 {
		s.Rand = rand.New(rand.NewSource(params.Seed))
	}

	files, err := s.Sample(params.Path)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	logger.Info("pipeline: sampled shard files",
		"dataset", params.DatasetName(),
		"sampled", len(files),
		"sample_percentage", params.SamplePercentage,
	)

	agg := &aggregator.Aggregator{
		Loader:  shardfile.Loader{FS: fs},
		Logger:  logger,
		Workers: params.Workers,
	}
	result, err := agg.Aggregate(ctx, files)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	logger.Info("pipeline: aggregated histograms",
		"histograms", len(result),
		"shards", len(files),
	)

	writer := &artifacts.Writer{
		FS:      fs,
		DestDir: params.DestDir,
		Force:   params.Force,
	}
	dataset := params.DatasetName()
	if err := writer.Write(dataset, result); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	logger.Info("pipeline: wrote artifacts",
		"json", writer.JSONPath(dataset),
		"parquet", writer.ParquetPath(dataset),
	)
	return nil
}
