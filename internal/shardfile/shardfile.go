// Package shardfile reads per-job histogram shard files.
//
// Shard files are written by upstream Python simulation jobs as pickled
// dictionaries mapping histogram name to a dictionary of raw fields.
package shardfile

import (
	"fmt"

	pickle "github.com/kisielk/og-rek"
	"github.com/spf13/afero"

	"github.com/simprod/histagg/internal/histogram"
)

// Loader deserializes shard files from a filesystem.
type Loader struct {
	FS afero.Fs
}

// Load reads one shard file into a mapping from histogram name to its
// raw record.
//
// Every failure is fatal for the aggregation run: silently dropping a
// shard would understate sample statistics without any visible signal.
func (l Loader) Load(path string) (map[string]*histogram.Record, error) {
	f, err := l.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shardfile: %w", err)
	}
	defer f.Close()

	value, err := pickle.NewDecoder(f).Decode()
	if err != nil {
		return nil, fmt.Errorf("shardfile: failed to unpickle %s: %w", path, err)
	}

	dict, ok := value.(map[any]any)
	if !ok {
		return nil, fmt.Errorf(
			"shardfile: %s: expected a dict of histograms, got %T", path, value)
	}

	records := make(map[string]*histogram.Record, len(dict))
	for key, raw := range dict {
		name, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf(
				"shardfile: %s: histogram key is %T, not a string", path, key)
		}

		record, err := recordFromDict(name, raw)
		if err != nil {
			return nil, fmt.Errorf("shardfile: %s: %q: %w", path, name, err)
		}
		records[name] = record
	}
	return records, nil
}

// recordFromDict converts one unpickled histogram dictionary into a
// Record. The dictionary key is authoritative for the record name.
func recordFromDict(name string, raw any) (*histogram.Record, error) {
	fields, ok := raw.(map[any]any)
	if !ok {
		return nil, fmt.Errorf("expected a dict of fields, got %T", raw)
	}

	record := &histogram.Record{Name: name}
	var err error

	if record.Xmin, err = floatField(fields, "xmin"); err != nil {
		return nil, err
	}
	if record.Xmax, err = floatField(fields, "xmax"); err != nil {
		return nil, err
	}
	if record.Underflow, err = intField(fields, "underflow"); err != nil {
		return nil, err
	}
	if record.Overflow, err = intField(fields, "overflow"); err != nil {
		return nil, err
	}
	if record.NaNCount, err = intField(fields, "nan_count"); err != nil {
		return nil, err
	}
	if record.BinValues, err = binsField(fields, "bin_values"); err != nil {
		return nil, err
	}
	return record, nil
}

func floatField(fields map[any]any, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	return asFloat(raw, key)
}

func intField(fields map[any]any, key string) (int64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("field %q is %T, not an integer", key, raw)
	}
}

func binsField(fields map[any]any, key string) ([]float64, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q is %T, not a list", key, raw)
	}
	bins := make([]float64, len(list))
	for i, item := range list {
		v, err := asFloat(item, key)
		if err != nil {
			return nil, err
		}
		bins[i] = v
	}
	return bins, nil
}

// asFloat widens pickled numeric types. Python pickles integral floats
// and plain ints differently depending on the producer, so both are
// accepted wherever a float is expected.
func asFloat(raw any, key string) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("field %q contains %T, not a number", key, raw)
	}
}
