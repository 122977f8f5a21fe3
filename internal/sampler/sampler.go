// Package sampler selects a bounded random subset of the histogram
// shard files in a dataset directory tree.
package sampler

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// shardExt is the extension of per-job histogram shard files.
const shardExt = ".pkl"

// ConfigError indicates an invalid sampling configuration: a fraction
// outside [0, 1], or a nonzero fraction too small to select even one
// file from the dataset.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// DiscoveryError indicates that a dataset root contains no shard files
// at all. An empty dataset is a configuration mistake, not a valid
// empty result.
type DiscoveryError struct {
	Root string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("no histogram files found in %s", e.Root)
}

// Sampler picks a random subset of a dataset's shard files.
type Sampler struct {
	FS afero.Fs

	// Fraction is the portion of discovered shard files to select,
	// in [0, 1]. The sample size is round(Fraction * total).
	Fraction float64

	// Rand is the randomness source for selection. Nil means a
	// time-seeded source; tests inject a seeded one for deterministic
	// selection.
	Rand *rand.Rand

	// AllowEmpty selects between the two historical sampling policies.
	// When true, a Fraction of exactly zero yields an empty sample.
	// When false, any configuration whose sample size rounds to zero is
	// a ConfigError. A nonzero Fraction that rounds to zero is an error
	// under both policies: the requested percentage is too small for
	// the dataset to be meaningful.
	AllowEmpty bool
}

// Sample discovers every shard file under the dataset root and returns
// a randomly selected subset of round(Fraction * total) distinct paths,
// chosen without replacement.
func (s *Sampler) Sample(root string) ([]string, error) {
	if s.Fraction < 0 || s.Fraction > 1 {
		return nil, &ConfigError{Message: fmt.Sprintf(
			"sample percentage must be in [0, 1], got %v", s.Fraction)}
	}

	files, err := s.discover(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &DiscoveryError{Root: root}
	}

	// Round half to even, so a half-file sample size does not bias the
	// selection upward.
	size := int(math.RoundToEven(s.Fraction * float64(len(files))))
	if size == 0 {
		if s.AllowEmpty && s.Fraction == 0 {
			return []string{}, nil
		}
		return nil, &ConfigError{Message: fmt.Sprintf(
			"sample size must be greater than or equal to 1:"+
				" sample_percentage=%v selects none of %d files",
			s.Fraction, len(files))}
	}

	rnd := s.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	// Discovery order is lexical, so a fixed seed always selects the
	// same subset.
	perm := rnd.Perm(len(files))
	selected := make([]string, size)
	for i := range selected {
		selected[i] = files[perm[i]]
	}
	return selected, nil
}

// discover walks the dataset tree and returns every shard file path in
// lexical order.
func (s *Sampler) discover(root string) ([]string, error) {
	var files []string
	err := afero.Walk(s.FS, root,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(path) == shardExt {
				files = append(files, path)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("sampler: failed to walk %s: %w", root, err)
	}
	return files, nil
}
