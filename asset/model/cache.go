// Package model loads 3D footprint models and memoizes them by path.
package model

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/board3d/board3d/asset"
	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/log"
)

var (
	ErrInvalidModel      = errors.New("model: invalid model")
	ErrUnsupportedFormat = errors.New("model: unsupported model format")
)

type cacheEntry struct {
	once  sync.Once
	model *board.Model
	err   error
}

// Cache implements board.ModelCache for Wavefront OBJ models. Model paths are
// resolved relative to the base resource the cache was created with.
type Cache struct {
	logger log.Logger
	base   *asset.Resource

	mutex   sync.Mutex
	entries map[string]*cacheEntry
}

// Create a cache resolving relative model paths against basePath (typically
// the board file). An empty basePath resolves against the working directory.
func NewCache(basePath string) *Cache {
	c := &Cache{
		logger:  log.New("model cache"),
		entries: make(map[string]*cacheEntry),
	}
	if basePath != "" {
		c.base = asset.NewResourceFromStream(basePath, nil)
	}
	return c
}

// Get the model at path, loading it on first use. Failed loads are cached too
// so a missing model is only reported once.
func (c *Cache) Model(path string) (*board.Model, error) {
	c.mutex.Lock()
	entry, exists := c.entries[path]
	if !exists {
		entry = &cacheEntry{}
		c.entries[path] = entry
	}
	c.mutex.Unlock()

	entry.once.Do(func() {
		entry.model, entry.err = c.load(path)
		if entry.err != nil {
			c.logger.Warningf("could not load model %q: %v", path, entry.err)
		}
	})
	return entry.model, entry.err
}

// Drop all cached models.
func (c *Cache) Purge() {
	c.mutex.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mutex.Unlock()
}

// Get the number of cached entries.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

func (c *Cache) load(path string) (*board.Model, error) {
	start := time.Now()

	res, err := asset.NewResource(path, c.base)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	if res.Ext() != ".obj" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, res.Ext())
	}

	m, err := newWavefrontReader().Read(res)
	if err != nil {
		return nil, err
	}

	c.logger.Infof("loaded model %q (%d triangles) in %d ms", res.Path(), m.TriangleCount(), time.Since(start).Nanoseconds()/1e6)
	return m, nil
}
