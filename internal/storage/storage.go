// Package storage provides the note stores the generator writes to: a local
// directory, a WebDAV share, and wrappers for caching and dry runs.
//
// All stores address files with slash separated paths relative to their root.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	// ErrExist is returned by Create when the path is already taken.
	ErrExist = errors.New("file already exists")
	// ErrNotExist is returned by Modify and Read when the path is absent.
	ErrNotExist = errors.New("file does not exist")
)

// Store is implemented by every backend in this package.
type Store interface {
	Exists(ctx context.Context, p string) (bool, error)
	Read(ctx context.Context, p string) (string, error)
	Create(ctx context.Context, p, text string) error
	Modify(ctx context.Context, p, text string) error
	List(ctx context.Context, folder string) ([]string, error)
}

// clean normalizes a store path: slash separated, no leading slash, "" for the root.
func clean(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

// parent returns the cleaned folder containing p, "" for the root.
func parent(p string) string {
	dir := path.Dir(clean(p))
	if dir == "." {
		return ""
	}
	return dir
}
