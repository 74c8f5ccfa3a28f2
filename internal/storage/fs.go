package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// FS stores notes in a local directory tree.
type FS struct {
	root string
}

// NewFS returns a store rooted at dir. The directory must exist.
func NewFS(dir string) (*FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open notes directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("notes root %s is not a directory", dir)
	}
	return &FS{root: dir}, nil
}

func (s *FS) abs(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(clean(p)))
}

// Exists reports whether a file or folder is present at p.
func (s *FS) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(s.abs(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Read returns the contents of the file at p.
func (s *FS) Read(_ context.Context, p string) (string, error) {
	b, err := os.ReadFile(s.abs(p))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", p, ErrNotExist)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Version returns a token that changes whenever the file at p is rewritten.
func (s *FS) Version(_ context.Context, p string) (string, error) {
	info, err := os.Stat(s.abs(p))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", p, ErrNotExist)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

// Create writes a new file, creating parent folders as needed.
func (s *FS) Create(_ context.Context, p, text string) error {
	target := s.abs(p)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", p, ErrExist)
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Modify replaces an existing file atomically via a temp file and rename.
func (s *FS) Modify(_ context.Context, p, text string) error {
	target := s.abs(p)
	info, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", p, ErrNotExist)
	}
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".calnotes-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmpName, target)
}

// List returns the files directly inside folder. A missing folder is empty.
func (s *FS) List(_ context.Context, folder string) ([]string, error) {
	entries, err := os.ReadDir(s.abs(folder))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dir := clean(folder)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, path.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
