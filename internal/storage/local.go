// Package storage keeps uploaded photos on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"
)

// URLPrefix is the public path stored photos are served under.
const URLPrefix = "/uploads/"

// Store persists normalized photo bytes and returns their public URL.
type Store interface {
	Save(ctx context.Context, data []byte) (string, error)
	// Delete removes a photo previously returned by Save. A missing file is not an error.
	Delete(ctx context.Context, url string) error
}

// Local writes photos into a directory with random file names.
type Local struct {
	dir string
}

// NewLocal ensures dir exists.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Dir is the directory served at URLPrefix.
func (l *Local) Dir() string { return l.dir }

// Save writes data as <uuid>.jpg. The file is written under a temp name and renamed
// so readers never observe a partial photo.
func (l *Local) Save(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	name := id.String() + ".jpg"

	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, name)); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	return URLPrefix + name, nil
}

// Delete removes the file behind url. Only names produced by Save are accepted.
func (l *Local) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, ok := strings.CutPrefix(url, URLPrefix)
	if !ok || name == "" || filepath.Base(name) != name || !strings.HasSuffix(name, ".jpg") {
		return fmt.Errorf("not a stored photo: %q", url)
	}
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove photo: %w", err)
	}
	return nil
}
