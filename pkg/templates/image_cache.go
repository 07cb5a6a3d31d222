package templates

import (
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"jordanella.com/screen-mapper/internal/cv"
	mapperr "jordanella.com/screen-mapper/internal/errors"
)

// cachedImage is one decoded template file
type cachedImage struct {
	image    *image.RGBA
	modTime  time.Time
	useCount int
}

// ImageCache keeps decoded template images keyed by their cleaned path.
// An entry is reloaded when the file's modification time changes.
type ImageCache struct {
	images map[string]*cachedImage
	mu     sync.Mutex
	stats  CacheStats
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits     int64 // Served from memory
	Misses   int64 // Had to load
	Loads    int64 // Successful loads
	Unloads  int64 // Entries dropped by Invalidate or Clear
	Failures int64 // Loads that failed
}

// NewImageCache creates a new image cache
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*cachedImage),
	}
}

// Get returns the decoded template at path, loading it on first use.
// Unreadable or undecodable files yield a TEMPLATE_NOT_FOUND error.
func (ic *ImageCache) Get(path string) (*image.RGBA, error) {
	key := filepath.Clean(path)

	info, err := os.Stat(key)
	if err != nil {
		ic.fail()
		return nil, mapperr.NewTemplateNotFound(path, err)
	}

	ic.mu.Lock()
	cached, ok := ic.images[key]
	if ok && cached.modTime.Equal(info.ModTime()) {
		cached.useCount++
		ic.stats.Hits++
		ic.mu.Unlock()
		return cached.image, nil
	}
	ic.stats.Misses++
	ic.mu.Unlock()

	// Decode outside the lock; concurrent misses on one path may both load
	img, err := cv.LoadImage(key)
	if err != nil {
		ic.fail()
		return nil, mapperr.NewTemplateNotFound(path, err)
	}

	ic.mu.Lock()
	ic.images[key] = &cachedImage{image: img, modTime: info.ModTime(), useCount: 1}
	ic.stats.Loads++
	ic.mu.Unlock()

	return img, nil
}

// Preload loads every path, returning the first failure
func (ic *ImageCache) Preload(paths ...string) error {
	for _, path := range paths {
		if _, err := ic.Get(path); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate drops path from the cache
func (ic *ImageCache) Invalidate(path string) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	key := filepath.Clean(path)
	if _, ok := ic.images[key]; ok {
		delete(ic.images, key)
		ic.stats.Unloads++
	}
}

// Clear drops every cached image
func (ic *ImageCache) Clear() {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.stats.Unloads += int64(len(ic.images))
	ic.images = make(map[string]*cachedImage)
}

// IsLoaded returns true if path is currently in memory
func (ic *ImageCache) IsLoaded(path string) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	_, ok := ic.images[filepath.Clean(path)]
	return ok
}

// Len returns the number of cached images
func (ic *ImageCache) Len() int {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return len(ic.images)
}

// Stats returns cache statistics
func (ic *ImageCache) Stats() CacheStats {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.stats
}

func (ic *ImageCache) fail() {
	ic.mu.Lock()
	ic.stats.Failures++
	ic.mu.Unlock()
}
