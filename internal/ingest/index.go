package ingest

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"framefeed/internal/npy"
)

const IndexName = "metadata.npy"

// BuildIndex scans a normalized corpus directory and records each
// episode's frame count. Lengths come from the npy header alone, so no
// episode is ever materialized. An unreadable file is skipped with a
// warning; one corrupt episode must not sink the index.
func BuildIndex(dir string, workers int) ([]npy.MetadataEntry, error) {
	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, errors.Wrapf(err, "unable to list corpus directory '%s'", dir)
	}

	var paths []string

	for _, entry := range entries {
		name := entry.Name()

		if entry.IsDir() || !strings.HasSuffix(name, ".npy") || name == IndexName {
			continue
		}

		paths = append(paths, filepath.Join(dir, name))
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]*npy.MetadataEntry, len(paths))
	tasks := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range tasks {
				shape, err := npy.ReadShape(paths[idx])

				if err != nil {
					log.WithError(err).WithField("path", paths[idx]).Warn("skipping unreadable episode")
					continue
				}

				if len(shape) == 0 {
					log.WithField("path", paths[idx]).Warn("skipping episode with empty shape")
					continue
				}

				results[idx] = &npy.MetadataEntry{Path: paths[idx], Length: int64(shape[0])}
			}
		}()
	}

	for idx := range paths {
		tasks <- idx
	}

	close(tasks)
	wg.Wait()

	index := make([]npy.MetadataEntry, 0, len(paths))

	for _, result := range results {
		if result != nil {
			index = append(index, *result)
		}
	}

	sort.Slice(index, func(i, j int) bool { return index[i].Path < index[j].Path })

	return index, nil
}

// WriteIndex persists the index atomically: readers see either the old
// index or the complete new one, never a partial write.
func WriteIndex(dir string, index []npy.MetadataEntry) error {
	tmp, err := os.CreateTemp(dir, IndexName+".*")

	if err != nil {
		return errors.Wrap(err, "unable to create temporary index")
	}

	defer os.Remove(tmp.Name())

	if err = npy.WriteMetadata(tmp, index); err != nil {
		tmp.Close()
		return err
	}

	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "unable to flush temporary index")
	}

	path := filepath.Join(dir, IndexName)

	return errors.Wrapf(os.Rename(tmp.Name(), path), "unable to move index into place at '%s'", path)
}
