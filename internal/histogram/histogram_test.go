package histogram_test

import (
	"testing"

	"github.com/simprod/histagg/internal/histogram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(xmin, xmax float64, bins []float64) *histogram.Record {
	return &histogram.Record{
		Name:      "PrimaryEnergy",
		Xmin:      xmin,
		Xmax:      xmax,
		Underflow: 1,
		Overflow:  2,
		NaNCount:  3,
		BinValues: bins,
	}
}

func TestMerge(t *testing.T) {
	existing := testRecord(0, 10, []float64{1, 2, 3})
	existing.NaNCount = 5
	existing.SampleCount = 1
	incoming := testRecord(2, 8, []float64{0.5, 1.5, 2.5})
	incoming.NaNCount = 2

	merged, err := histogram.Merge(existing, incoming)

	require.NoError(t, err)
	assert.Equal(t, 0.0, merged.Xmin)
	assert.Equal(t, 10.0, merged.Xmax)
	assert.Equal(t, int64(7), merged.NaNCount)
	assert.Equal(t, int64(2), merged.Underflow)
	assert.Equal(t, int64(4), merged.Overflow)
	assert.Equal(t, []float64{1.5, 3.5, 5.5}, merged.BinValues)
	assert.Equal(t, int64(2), merged.SampleCount)
}

func TestMerge_WidensBounds(t *testing.T) {
	a := testRecord(3, 7, []float64{1})
	b := testRecord(-1, 12, []float64{1})

	merged, err := histogram.Merge(a, b)

	require.NoError(t, err)
	assert.Equal(t, -1.0, merged.Xmin)
	assert.Equal(t, 12.0, merged.Xmax)
}

func TestMerge_DoesNotMutateArguments(t *testing.T) {
	a := testRecord(0, 10, []float64{1, 2})
	b := testRecord(1, 9, []float64{3, 4})

	_, err := histogram.Merge(a, b)

	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, a.BinValues)
	assert.Equal(t, []float64{3, 4}, b.BinValues)
	assert.Zero(t, a.SampleCount)
}

func TestMerge_Commutative(t *testing.T) {
	a := testRecord(0, 10, []float64{1, 2, 3})
	a.SampleCount = 4
	b := testRecord(-5, 20, []float64{10, 20, 30})
	b.SampleCount = 4

	ab, err := histogram.Merge(a, b)
	require.NoError(t, err)
	ba, err := histogram.Merge(b, a)
	require.NoError(t, err)

	// Identical in every field, including SampleCount because both
	// inputs carry the same count.
	assert.Equal(t, ab, ba)

	// SampleCount always increments the first argument's count.
	b.SampleCount = 0
	ab, err = histogram.Merge(a, b)
	require.NoError(t, err)
	ba, err = histogram.Merge(b, a)
	require.NoError(t, err)
	assert.Equal(t, int64(5), ab.SampleCount)
	assert.Equal(t, int64(1), ba.SampleCount)
	assert.Equal(t, ab.BinValues, ba.BinValues)
	assert.Equal(t, ab.Xmin, ba.Xmin)
	assert.Equal(t, ab.Xmax, ba.Xmax)
	assert.Equal(t, ab.NaNCount, ba.NaNCount)
}

func TestMerge_Associative(t *testing.T) {
	a := testRecord(0, 10, []float64{1, 2, 3})
	b := testRecord(-2, 8, []float64{4, 5, 6})
	c := testRecord(3, 30, []float64{7, 8, 9})

	ab, err := histogram.Merge(a, b)
	require.NoError(t, err)
	abc1, err := histogram.Merge(ab, c)
	require.NoError(t, err)

	bc, err := histogram.Merge(b, c)
	require.NoError(t, err)
	abc2, err := histogram.Merge(a, bc)
	require.NoError(t, err)

	assert.Equal(t, abc1.Xmin, abc2.Xmin)
	assert.Equal(t, abc1.Xmax, abc2.Xmax)
	assert.Equal(t, abc1.Underflow, abc2.Underflow)
	assert.Equal(t, abc1.Overflow, abc2.Overflow)
	assert.Equal(t, abc1.NaNCount, abc2.NaNCount)
	assert.Equal(t, abc1.BinValues, abc2.BinValues)
}

func TestMerge_LengthMismatch(t *testing.T) {
	a := testRecord(0, 10, []float64{1, 2})
	b := testRecord(0, 10, []float64{1, 2, 3})

	_, err := histogram.Merge(a, b)

	var schemaErr *histogram.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t,
		"'bin_values' list must have the same length: [1, 2] + [1, 2, 3]",
		err.Error())
	assert.Contains(t, err.Error(), "[1, 2]")
	assert.Contains(t, err.Error(), "[1, 2, 3]")
}

func TestClone(t *testing.T) {
	a := testRecord(0, 10, []float64{1, 2})
	clone := a.Clone()

	clone.BinValues[0] = 99

	assert.Equal(t, []float64{1, 2}, a.BinValues)
}

func TestToMap(t *testing.T) {
	a := testRecord(0, 10, []float64{1, 2})
	a.SampleCount = 7

	m := a.ToMap()

	assert.Equal(t, "PrimaryEnergy", m["name"])
	assert.Equal(t, 0.0, m["xmin"])
	assert.Equal(t, 10.0, m["xmax"])
	assert.Equal(t, int64(2), m["overflow"])
	assert.Equal(t, int64(1), m["underflow"])
	assert.Equal(t, int64(3), m["nan_count"])
	assert.Equal(t, []float64{1, 2}, m["bin_values"])
	assert.Equal(t, int64(7), m["_sample_count"])
}
