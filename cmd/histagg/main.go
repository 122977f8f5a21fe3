package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/simprod/histagg/internal/observability"
	"github.com/simprod/histagg/internal/pipeline"
	"github.com/simprod/histagg/internal/sentryext"
	"github.com/simprod/histagg/internal/version"
)

func main() {
	samplePercentage := flag.Float64("sample-percentage", 1.0,
		"Fraction of the dataset's histogram shard files to aggregate, in [0, 1].")
	destDir := flag.String("dest-dir", ".",
		"Directory that receives the output artifacts.")
	force := flag.Bool("force", false,
		"Overwrite existing output artifacts for this dataset.")
	workers := flag.Int("workers", 1,
		"Number of shard files to load and fold concurrently. "+
			"The aggregated result is identical for any worker count.")
	seed := flag.Int64("seed", 0,
		"Seed for shard file selection; 0 selects randomly on every run.")
	allowEmptySample := flag.Bool("allow-empty-sample", false,
		"Treat a sample percentage of exactly 0 as a valid empty sample "+
			"instead of a configuration error.")
	logLevel := flag.Int("log-level", 0,
		"Specifies the log level to use for logging. -4: debug, 0: info, 4: warn, 8: error.")
	disableAnalytics := flag.Bool("no-observability", false,
		"Disables error reporting analytics.")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "============================================\n")
		fmt.Fprintf(os.Stderr, "     histagg - dataset histogram roll-up    \n")
		fmt.Fprintf(os.Stderr, "============================================\n")
		fmt.Fprintf(os.Stderr, "Version: %s\n\n", version.Version)
		fmt.Fprintf(os.Stderr, "Usage: histagg [flags] <dataset-root>\n\n")
		fmt.Fprintf(os.Stderr, "Aggregates the per-job histogram shard files under <dataset-root>\n")
		fmt.Fprintf(os.Stderr, "into one mapping, written as <dataset>.histo.json and\n")
		fmt.Fprintf(os.Stderr, "<dataset>.histo.parquet under -dest-dir.\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	datasetPath := flag.Arg(0)

	sentryClient := sentryext.New(sentryext.Params{
		Disabled:         *disableAnalytics,
		DSN:              os.Getenv("HISTAGG_SENTRY_DSN"),
		AttachStacktrace: true,
		Release:          version.Version,
		Environment:      version.Environment,
	})
	defer sentryClient.Flush(2 * time.Second)

	logger := observability.NewCoreLogger(
		slog.New(
			slog.NewJSONHandler(
				os.Stderr,
				&slog.HandlerOptions{Level: slog.Level(*logLevel)},
			),
		),
		&observability.CoreLoggerParams{
			Sentry: sentryClient,
			Tags:   observability.Tags{"dataset": datasetPath},
		},
	)

	if *workers < 1 {
		logger.CaptureWarn(
			"main: -workers must be at least 1; using 1",
			"workers", *workers,
		)
		*workers = 1
	}

	logger.Info(
		"main: starting aggregation",
		"sample-percentage", *samplePercentage,
		"dest-dir", *destDir,
		"force", *force,
		"workers", *workers,
		"seed", *seed,
	)

	err := pipeline.Run(
		context.Background(),
		afero.NewOsFs(),
		pipeline.Params{
			Path:             datasetPath,
			SamplePercentage: *samplePercentage,
			DestDir:          *destDir,
			Force:            *force,
			AllowEmptySample: *allowEmptySample,
			Workers:          *workers,
			Seed:             *seed,
		},
		logger,
	)
	if err != nil {
		logger.CaptureFatal(err)
		fmt.Fprintf(os.Stderr, "histagg: %v\n", err)
		sentryClient.Flush(2 * time.Second)
		os.Exit(1)
	}
}
