package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend stores keys as a JSON array of strings.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the backing file location.
func (f *FileBackend) Path() string {
	return f.path
}

// ReadKeys returns nil without error when the file does not exist yet.
func (f *FileBackend) ReadKeys(ctx context.Context) ([]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}
	return keys, nil
}

// WriteKeys replaces the file atomically.
func (f *FileBackend) WriteKeys(ctx context.Context, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create keys dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".keys-*.json")
	if err != nil {
		return fmt.Errorf("create temp keys file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write keys file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close keys file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace keys file: %w", err)
	}
	return nil
}

// MemoryBackend keeps keys in process; used for replays and tests.
type MemoryBackend struct {
	mu   sync.Mutex
	keys []string
}

// NewMemoryBackend seeds a backend with keys.
func NewMemoryBackend(keys ...string) *MemoryBackend {
	return &MemoryBackend{keys: append([]string(nil), keys...)}
}

func (m *MemoryBackend) ReadKeys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...), nil
}

func (m *MemoryBackend) WriteKeys(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append([]string(nil), keys...)
	return nil
}

var (
	_ Backend = (*FileBackend)(nil)
	_ Backend = (*MemoryBackend)(nil)
)
