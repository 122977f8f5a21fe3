// Package histogram defines the histogram record produced by simulation
// jobs and the pure merge operation used to aggregate records across
// shard files.
package histogram

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one named histogram, either as read from a shard file or as
// accumulated across shards.
//
// Xmin and Xmax describe the observed domain of the histogram, not its
// bin edges. Underflow and Overflow count observations outside
// [Xmin, Xmax], and NaNCount counts non-numeric observations that were
// excluded from the bins.
type Record struct {
	// Name identifies the histogram and is the key under which it is
	// aggregated and persisted.
	Name string

	Xmin float64
	Xmax float64

	Underflow int64
	Overflow  int64
	NaNCount  int64

	// BinValues holds one count per bin. All records sharing a Name must
	// have the same number of bins; Merge enforces this.
	BinValues []float64

	// SampleCount is the number of shard-level records folded into this
	// one. It is zero on a raw shard record and at least one in an
	// accumulator. It is provenance metadata, not physics.
	SampleCount int64
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	out.BinValues = append([]float64(nil), r.BinValues...)
	return &out
}

// ToMap returns the record's persisted field shape. Both output
// artifacts are derived from this mapping so that they always agree
// field for field.
func (r *Record) ToMap() map[string]any {
	return map[string]any{
		"name":          r.Name,
		"xmin":          r.Xmin,
		"xmax":          r.Xmax,
		"overflow":      r.Overflow,
		"underflow":     r.Underflow,
		"nan_count":     r.NaNCount,
		"bin_values":    r.BinValues,
		"_sample_count": r.SampleCount,
	}
}

// SchemaError indicates that two records sharing a name cannot be merged
// because their bin arrays have different lengths.
type SchemaError struct {
	Existing []float64
	Incoming []float64
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf(
		"'bin_values' list must have the same length: %s + %s",
		formatBins(e.Existing),
		formatBins(e.Incoming),
	)
}

func formatBins(bins []float64) string {
	parts := make([]string, 0, len(bins))
	for _, v := range bins {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Merge combines a shard record into an accumulated record and returns
// the result. Neither argument is modified.
//
// The caller guarantees both records share the same name. Domain bounds
// widen to the union of the two records, counts are summed, and bins are
// summed index for index. The merged SampleCount is the existing count
// plus one, regardless of the incoming record's own count.
//
// Merge is commutative and associative in every field except
// SampleCount, so any fold order over a set of shards yields the same
// numeric result.
//
// Only the bin array lengths are compared; shard records carry no bin
// edge metadata, so two histograms with equal bin counts but different
// edges would be summed without complaint.
func Merge(existing, incoming *Record) (*Record, error) {
	if len(existing.BinValues) != len(incoming.BinValues) {
		return nil, &SchemaError{
			Existing: existing.BinValues,
			Incoming: incoming.BinValues,
		}
	}

	merged := &Record{
		Name:        existing.Name,
		Xmin:        min(existing.Xmin, incoming.Xmin),
		Xmax:        max(existing.Xmax, incoming.Xmax),
		Underflow:   existing.Underflow + incoming.Underflow,
		Overflow:    existing.Overflow + incoming.Overflow,
		NaNCount:    existing.NaNCount + incoming.NaNCount,
		BinValues:   make([]float64, len(existing.BinValues)),
		SampleCount: existing.SampleCount + 1,
	}
	for i, v := range existing.BinValues {
		merged.BinValues[i] = v + incoming.BinValues[i]
	}
	return merged, nil
}
