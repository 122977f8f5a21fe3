// Package shardfiletest creates pickled shard files for tests, shaped
// like the files written by upstream simulation jobs.
package shardfiletest

import (
	"path/filepath"
	"testing"

	pickle "github.com/kisielk/og-rek"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/simprod/histagg/internal/histogram"
)

// WriteShard pickles the given histograms into a shard file, creating
// parent directories as needed.
func WriteShard(
	t *testing.T,
	fs afero.Fs,
	path string,
	records map[string]*histogram.Record,
) {
	t.Helper()

	dict := make(map[string]any, len(records))
	for name, record := range records {
		dict[name] = map[string]any{
			"name":       record.Name,
			"xmin":       record.Xmin,
			"xmax":       record.Xmax,
			"overflow":   record.Overflow,
			"underflow":  record.Underflow,
			"nan_count":  record.NaNCount,
			"bin_values": record.BinValues,
		}
	}

	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))

	f, err := fs.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()

	require.NoError(t, pickle.NewEncoder(f).Encode(dict))
}

// Record returns a shard-level record with the given bins and sensible
// defaults for the remaining fields.
func Record(name string, xmin, xmax float64, bins []float64) *histogram.Record {
	return &histogram.Record{
		Name:      name,
		Xmin:      xmin,
		Xmax:      xmax,
		BinValues: bins,
	}
}
