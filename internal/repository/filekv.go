package repository

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const kvFileExt = ".json"

// FileKV is a file-backed KV medium: one file per key under a base
// directory, with an overall byte quota standing in for the capacity limit
// of a browser-style origin-scoped store.
type FileKV struct {
	baseDir  string
	maxBytes int64

	mu    sync.Mutex
	usage int64
	sizes map[string]int64
}

// NewFileKV creates the base directory if needed and indexes existing
// entries so quota accounting survives a reload.
func NewFileKV(baseDir string, maxBytes int64) (*FileKV, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("repository: base directory must not be empty")
	}
	if maxBytes <= 0 {
		return nil, errors.New("repository: max bytes must be positive")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("repository: create base directory: %w", err)
	}

	kv := &FileKV{baseDir: baseDir, maxBytes: maxBytes, sizes: map[string]int64{}}
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("repository: index base directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), kvFileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(e.Name(), kvFileExt))
		if err != nil {
			continue
		}
		kv.sizes[key] = info.Size()
		kv.usage += info.Size()
	}
	return kv, nil
}

func (kv *FileKV) path(key string) string {
	return filepath.Join(kv.baseDir, url.QueryEscape(key)+kvFileExt)
}

// Get returns the stored value and whether the key exists.
func (kv *FileKV) Get(key string) ([]byte, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	data, err := os.ReadFile(kv.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("repository: read %q: %w", key, err)
	}
	return data, true, nil
}

// Set writes the value atomically via a temp file rename. When the write
// would push total usage past the quota it returns ErrQuotaExceeded and
// leaves any previous value readable.
func (kv *FileKV) Set(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	next := kv.usage - kv.sizes[key] + int64(len(value))
	if next > kv.maxBytes {
		return fmt.Errorf("%w: %d of %d bytes used, %d requested",
			ErrQuotaExceeded, kv.usage, kv.maxBytes, len(value))
	}

	dst := kv.path(key)
	tmp, err := os.CreateTemp(kv.baseDir, ".kv-*")
	if err != nil {
		return fmt.Errorf("repository: temp file for %q: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("repository: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("repository: close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("repository: rename %q: %w", key, err)
	}

	kv.usage = next
	kv.sizes[key] = int64(len(value))
	return nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (kv *FileKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	err := os.Remove(kv.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("repository: delete %q: %w", key, err)
	}
	kv.usage -= kv.sizes[key]
	delete(kv.sizes, key)
	return nil
}

// List returns all keys with the given prefix.
func (kv *FileKV) List(prefix string) ([]string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	entries, err := os.ReadDir(kv.baseDir)
	if err != nil {
		return nil, fmt.Errorf("repository: list: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), kvFileExt) {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(e.Name(), kvFileExt))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

var _ KV = (*FileKV)(nil)
