package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileStore saves uploaded images to disk under a base directory.
type FileStore struct {
	basePath string
	dirName  string
}

// NewFileStore creates the base directory if missing. dirName is the public
// path segment references are built from (e.g. "uploads").
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		dirName:  filepath.Base(basePath),
	}, nil
}

// Put writes the image under the given name and returns its reference.
// name must already be a server-generated filename, never client input.
func (f *FileStore) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	name = filepath.Base(name)
	target := filepath.Join(f.basePath, name)
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	// References are URL material: forward slashes always.
	return path.Join(f.dirName, name), nil
}

// Open returns the stored image bytes.
func (f *FileStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	name = filepath.Base(name)
	file, err := os.Open(filepath.Join(f.basePath, name))
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Delete removes a stored image. Missing files are not an error.
func (f *FileStore) Delete(_ context.Context, name string) error {
	name = filepath.Base(name)
	err := os.Remove(filepath.Join(f.basePath, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
