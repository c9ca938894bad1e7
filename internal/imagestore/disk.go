package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const filePrefix = "file:"

// Disk stores images as files under a root directory.
type Disk struct {
	root string
}

// NewDisk creates a disk store rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Disk{root: dir}, nil
}

// Put writes r to key and returns a "file:" reference.
func (d *Disk) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	path := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store image: %w", err)
	}
	return filePrefix + key, nil
}

// Open returns the file behind a "file:" reference.
func (d *Disk) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	if !strings.HasPrefix(ref, filePrefix) {
		return nil, fmt.Errorf("%w: %q", ErrBadRef, ref)
	}
	key, err := cleanKey(strings.TrimPrefix(ref, filePrefix))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open image: %w", err)
	}
	return f, nil
}
