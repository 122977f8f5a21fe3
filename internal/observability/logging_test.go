package observability_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simprod/histagg/internal/observability"
)

func TestNewTags(t *testing.T) {
	tags := observability.NewTags(
		"dataset", "sample_dataset",
		slog.Int("shards", 10),
	)

	assert.Equal(t,
		observability.Tags{"dataset": "sample_dataset", "shards": "10"},
		tags)
}

func TestNewTags_IgnoresIncompletePair(t *testing.T) {
	tags := observability.NewTags("dangling")

	assert.Empty(t, tags)
}

func TestCoreLogger_BaseTags(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewCoreLogger(
		slog.New(slog.NewJSONHandler(&buf, nil)),
		&observability.CoreLoggerParams{
			Tags: observability.Tags{"dataset": "d1"},
		},
	)

	logger.Info("sampling")

	assert.Contains(t, buf.String(), `"dataset":"d1"`)
	assert.Equal(t, observability.Tags{"dataset": "d1"}, logger.GetTags())
}

func TestCoreLogger_CaptureWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewCoreLogger(
		slog.New(slog.NewJSONHandler(&buf, nil)),
		nil,
	)

	logger.CaptureWarn("workers clamped", "workers", 0)

	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "workers clamped")
	assert.Contains(t, buf.String(), `"workers":0`)
}

func TestNewNoOpLogger(t *testing.T) {
	logger := observability.NewNoOpLogger()

	// Must not panic without a sentry client.
	logger.CaptureFatal(assert.AnError)
	logger.CaptureWarn("warn")
}
