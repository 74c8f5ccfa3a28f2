package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Versioner is implemented by stores that can report a cheap change token for
// a file, such as a modification time or an ETag.
type Versioner interface {
	Version(ctx context.Context, p string) (string, error)
}

type cachedFile struct {
	version string
	text    string
}

// Cached keeps recently read files in an LRU so repeated folder scans against a
// remote store do not download unchanged notes again.
//
// When the wrapped store is a Versioner, a cached copy is served only while its
// version still matches. Otherwise listing a folder drops the cached copies of
// the files in it, so every scan sees what is on the store.
type Cached struct {
	Store
	cache *lru.Cache[string, cachedFile]
}

// NewCached wraps store with a read cache holding up to size files.
func NewCached(store Store, size int) (*Cached, error) {
	cache, err := lru.New[string, cachedFile](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create read cache: %w", err)
	}
	return &Cached{Store: store, cache: cache}, nil
}

// Read serves p from the cache when the cached copy is current.
func (c *Cached) Read(ctx context.Context, p string) (string, error) {
	key := clean(p)
	version, err := c.version(ctx, p)
	if err != nil {
		c.cache.Remove(key)
		return "", err
	}
	if f, ok := c.cache.Get(key); ok && f.version == version {
		return f.text, nil
	}
	text, err := c.Store.Read(ctx, p)
	if err != nil {
		c.cache.Remove(key)
		return "", err
	}
	c.cache.Add(key, cachedFile{version: version, text: text})
	return text, nil
}

// Create writes through and caches the new contents.
func (c *Cached) Create(ctx context.Context, p, text string) error {
	err := c.Store.Create(ctx, p, text)
	c.remember(ctx, p, text, err)
	return err
}

// Modify writes through and caches the new contents.
func (c *Cached) Modify(ctx context.Context, p, text string) error {
	err := c.Store.Modify(ctx, p, text)
	c.remember(ctx, p, text, err)
	return err
}

// List lists folder on the wrapped store.
func (c *Cached) List(ctx context.Context, folder string) ([]string, error) {
	if _, ok := c.Store.(Versioner); !ok {
		dir := clean(folder)
		for _, key := range c.cache.Keys() {
			if parent(key) == dir {
				c.cache.Remove(key)
			}
		}
	}
	return c.Store.List(ctx, folder)
}

// Len reports the number of cached files.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func (c *Cached) remember(ctx context.Context, p, text string, writeErr error) {
	key := clean(p)
	if writeErr != nil {
		c.cache.Remove(key)
		return
	}
	version, err := c.version(ctx, p)
	if err != nil {
		c.cache.Remove(key)
		return
	}
	c.cache.Add(key, cachedFile{version: version, text: text})
}

func (c *Cached) version(ctx context.Context, p string) (string, error) {
	v, ok := c.Store.(Versioner)
	if !ok {
		return "", nil
	}
	return v.Version(ctx, p)
}
