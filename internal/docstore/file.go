package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/model"
)

const fileExt = ".json"

// FileStore keeps one <collection>.json file per collection in a directory.
type FileStore struct {
	dir string
	log logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewFileStore roots a store at dir, creating it if needed.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: empty directory: %w", ErrInvalidName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store %q: %w", dir, err)
	}
	o := buildOptions(opts)
	return &FileStore{dir: dir, log: o.log.With(logging.String("store", "file"))}, nil
}

func (f *FileStore) path(collection string) (string, error) {
	if err := CheckName(collection); err != nil {
		return "", err
	}
	if strings.ContainsAny(collection, `/\`) || collection == "." || collection == ".." {
		return "", fmt.Errorf("%q: %w", collection, ErrInvalidName)
	}
	return filepath.Join(f.dir, collection+fileExt), nil
}

func (f *FileStore) Collections(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return visible(names), nil
}

func (f *FileStore) Load(ctx context.Context, collection string) ([]model.View, error) {
	path, err := f.path(collection)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", collection, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", collection, err)
	}
	return Decode(data)
}

// Save writes through a temporary file so a crash never leaves a partial
// document behind.
func (f *FileStore) Save(ctx context.Context, collection string, views []model.View) (WriteResult, error) {
	path, err := f.path(collection)
	if err != nil {
		return WriteResult{}, err
	}
	data, err := Encode(views)
	if err != nil {
		return WriteResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return WriteResult{}, ErrClosed
	}
	tmp, err := os.CreateTemp(f.dir, "."+collection+"-*")
	if err != nil {
		return WriteResult{}, fmt.Errorf("save %q: %w", collection, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return WriteResult{}, fmt.Errorf("save %q: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return WriteResult{}, fmt.Errorf("save %q: %w", collection, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return WriteResult{}, fmt.Errorf("save %q: %w", collection, err)
	}
	f.log.Debug(ctx, "collection saved", logging.String("collection", collection), logging.Int("views", len(views)))
	return WriteResult{OK: 1, N: len(views)}, nil
}

func (f *FileStore) Delete(ctx context.Context, collection string) error {
	path, err := f.path(collection)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%q: %w", collection, ErrNotFound)
		}
		return fmt.Errorf("delete %q: %w", collection, err)
	}
	return nil
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
