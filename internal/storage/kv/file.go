package kv

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

var _ Store = (*File)(nil)

// File is a Store persisted as a single JSON object on disk. Every mutation
// rewrites the file through a temporary file and a rename, so readers never
// observe a half-written document.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a File store backed by path. The file and its directory are
// created on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read(ctx)
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read(ctx)
	if err != nil {
		return err
	}
	data[key] = value
	return f.write(data)
}

func (f *File) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read(ctx)
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return f.write(data)
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove store file")
	}
	return nil
}

// read loads the document. An unparseable document reads as empty, so the
// next write replaces it.
func (f *File) read(ctx context.Context) (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read store file")
	}

	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		zctx.From(ctx).Warn("Discarding unparseable store file",
			zap.String("path", f.path),
			zap.Error(err),
		)
		return make(map[string]string), nil
	}
	return data, nil
}

func (f *File) write(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal store file")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create store dir")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Wrap(err, "replace store file")
	}
	return nil
}
