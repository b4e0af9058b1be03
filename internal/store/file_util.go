package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// readCacheFile decodes the cache document at path. A missing or empty file
// is an empty cache.
func readCacheFile(path string) (*fileCache, error) {
	cache := &fileCache{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cache, nil
		}
		return nil, errors.Wrapf(err, "reading %s", filepath.Base(path))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cache, nil
	}
	if err := json.Unmarshal(data, cache); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", filepath.Base(path))
	}
	return cache, nil
}

// writeCacheFile replaces the document at path through a temp file in the
// same directory. The result is readable by the owner only.
func writeCacheFile(path string, cache *fileCache) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "creating cache dir")
	}
	file, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return errors.Wrap(err, "creating temp cache file")
	}
	defer func() {
		_ = os.Remove(file.Name())
	}()
	if err := file.Chmod(0o600); err != nil {
		_ = file.Close()
		return err
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cache); err != nil {
		_ = file.Close()
		return errors.Wrap(err, "encoding cache")
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), path)
}
