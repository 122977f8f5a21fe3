// Package artifacts persists an aggregated histogram mapping as two
// durable files: a JSON artifact for light-weight consumers and a
// Parquet artifact for numeric analysis. Both are derived from the same
// in-memory mapping and always agree field for field.
package artifacts

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/spf13/afero"
	"github.com/wandb/simplejsonext"

	"github.com/simprod/histagg/internal/histogram"
)

// Artifact path suffixes, appended to the dataset name.
const (
	JSONSuffix    = ".histo.json"
	ParquetSuffix = ".histo.parquet"
)

// ConflictError indicates that a destination artifact already exists
// and overwriting was not requested.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"output artifact already exists: %s (pass force to overwrite)", e.Path)
}

// ParquetSchema is the column layout of the Parquet artifact: one row
// per histogram name, each field a separately addressable column.
var ParquetSchema = arrow.NewSchema([]arrow.Field{
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "xmin", Type: arrow.PrimitiveTypes.Float64},
	{Name: "xmax", Type: arrow.PrimitiveTypes.Float64},
	{Name: "underflow", Type: arrow.PrimitiveTypes.Int64},
	{Name: "overflow", Type: arrow.PrimitiveTypes.Int64},
	{Name: "nan_count", Type: arrow.PrimitiveTypes.Int64},
	{Name: "bin_values", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	{Name: "_sample_count", Type: arrow.PrimitiveTypes.Int64},
}, nil)

// Writer persists aggregation results under a destination directory.
type Writer struct {
	FS      afero.Fs
	DestDir string

	// Force replaces existing artifacts instead of failing with a
	// ConflictError.
	Force bool
}

// JSONPath returns the JSON artifact path for a dataset name.
func (w *Writer) JSONPath(dataset string) string {
	return filepath.Join(w.DestDir, dataset+JSONSuffix)
}

// ParquetPath returns the Parquet artifact path for a dataset name.
func (w *Writer) ParquetPath(dataset string) string {
	return filepath.Join(w.DestDir, dataset+ParquetSuffix)
}

// Write persists the result as both artifacts.
//
// The conflict check is keyed on the Parquet artifact: if it exists and
// Force is unset, nothing is written. Both artifacts are fully staged
// as temporary files before either is promoted with a rename, so a
// failure at any point leaves the previous artifact pair intact and
// never a corrupt, half-written, or partial pair in place.
func (w *Writer) Write(dataset string, result map[string]*histogram.Record) error {
	parquetPath := w.ParquetPath(dataset)
	exists, err := afero.Exists(w.FS, parquetPath)
	if err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	if exists && !w.Force {
		return &ConflictError{Path: parquetPath}
	}

	if err := w.FS.MkdirAll(w.DestDir, 0o755); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}

	// Rows sorted by name so repeated runs produce identical bytes.
	names := make([]string, 0, len(result))
	for name := range result {
		names = append(names, name)
	}
	sort.Strings(names)

	jsonPath := w.JSONPath(dataset)
	jsonTmp := jsonPath + ".tmp"
	parquetTmp := parquetPath + ".tmp"

	if err := w.stageJSON(jsonTmp, names, result); err != nil {
		return fmt.Errorf("artifacts: json: %w", err)
	}
	if err := w.stageParquet(parquetTmp, names, result); err != nil {
		_ = w.FS.Remove(jsonTmp)
		return fmt.Errorf("artifacts: parquet: %w", err)
	}

	// Both artifacts are staged; promote the binary artifact first so
	// that a conflict check against it can never pass while the pair is
	// incomplete.
	if err := w.promote(parquetTmp, parquetPath); err != nil {
		_ = w.FS.Remove(jsonTmp)
		return fmt.Errorf("artifacts: parquet: %w", err)
	}
	if err := w.promote(jsonTmp, jsonPath); err != nil {
		return fmt.Errorf("artifacts: json: %w", err)
	}
	return nil
}

func (w *Writer) stageJSON(
	tmp string,
	names []string,
	result map[string]*histogram.Record,
) error {
	mapping := make(map[string]any, len(result))
	for _, name := range names {
		mapping[name] = result[name].ToMap()
	}

	// simplejsonext rather than encoding/json: bin contents and bounds
	// may hold NaN or infinities.
	data, err := simplejsonext.Marshal(mapping)
	if err != nil {
		return err
	}

	return afero.WriteFile(w.FS, tmp, data, 0o644)
}

func (w *Writer) stageParquet(
	tmp string,
	names []string,
	result map[string]*histogram.Record,
) error {
	alloc := memory.DefaultAllocator

	nameB := array.NewStringBuilder(alloc)
	xminB := array.NewFloat64Builder(alloc)
	xmaxB := array.NewFloat64Builder(alloc)
	underB := array.NewInt64Builder(alloc)
	overB := array.NewInt64Builder(alloc)
	nanB := array.NewInt64Builder(alloc)
	binsB := array.NewListBuilder(alloc, arrow.PrimitiveTypes.Float64)
	samplesB := array.NewInt64Builder(alloc)
	binValuesB := binsB.ValueBuilder().(*array.Float64Builder)

	builders := []array.Builder{
		nameB, xminB, xmaxB, underB, overB, nanB, binsB, samplesB,
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for _, name := range names {
		record := result[name]
		nameB.Append(record.Name)
		xminB.Append(record.Xmin)
		xmaxB.Append(record.Xmax)
		underB.Append(record.Underflow)
		overB.Append(record.Overflow)
		nanB.Append(record.NaNCount)
		binsB.Append(true)
		binValuesB.AppendValues(record.BinValues, nil)
		samplesB.Append(record.SampleCount)
	}

	arrays := make([]arrow.Array, 0, len(builders))
	for _, b := range builders {
		arrays = append(arrays, b.NewArray())
	}
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	batch := array.NewRecordBatch(ParquetSchema, arrays, int64(len(names)))
	defer batch.Release()

	f, err := w.FS.Create(tmp)
	if err != nil {
		return err
	}

	writer, err := pqarrow.NewFileWriter(
		ParquetSchema,
		f,
		parquet.NewWriterProperties(),
		pqarrow.DefaultWriterProps(),
	)
	if err != nil {
		f.Close()
		return err
	}

	if err := writer.Write(batch); err != nil {
		writer.Close()
		return err
	}
	// Close flushes the parquet footer and closes the underlying file;
	// the staged file is complete only once it succeeds.
	return writer.Close()
}

// promote moves a finished temporary file into place. Rename replaces
// the destination atomically on POSIX filesystems; filesystems that
// refuse to rename over an existing file get a remove-first fallback.
// When the fallback cannot apply, the rename error is the informative
// one and is the one returned.
func (w *Writer) promote(tmp, dst string) error {
	renameErr := w.FS.Rename(tmp, dst)
	if renameErr == nil {
		return nil
	}
	if err := w.FS.Remove(dst); err != nil {
		return renameErr
	}
	return w.FS.Rename(tmp, dst)
}
