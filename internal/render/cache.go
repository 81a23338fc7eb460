package render

import (
	"context"
	"image"
	"sync"
)

// fetchFunc resolves a source image id to its decoded bitmap.
type fetchFunc func(ctx context.Context, imageID string) (image.Image, error)

// originalCache memoizes decoded full-resolution source bitmaps per
// image id, so repeated rotated renders of the same crop fetch at most
// once. Entries are dropped by Invalidate when the backing file
// changes.
type originalCache struct {
	mu    sync.Mutex
	items map[string]image.Image
	fetch fetchFunc
}

func newOriginalCache(fetch fetchFunc) *originalCache {
	return &originalCache{items: make(map[string]image.Image), fetch: fetch}
}

// Get returns the cached bitmap or fetches and caches it. Fetch errors
// are not cached: a later call retries.
func (c *originalCache) Get(ctx context.Context, imageID string) (image.Image, error) {
	c.mu.Lock()
	if img, ok := c.items[imageID]; ok {
		c.mu.Unlock()
		return img, nil
	}
	c.mu.Unlock()

	// Fetch outside the lock; a duplicate concurrent fetch is harmless,
	// last writer wins.
	img, err := c.fetch(ctx, imageID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.items[imageID] = img
	c.mu.Unlock()
	return img, nil
}

// Invalidate drops one entry, or everything when imageID is empty.
func (c *originalCache) Invalidate(imageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if imageID == "" {
		c.items = make(map[string]image.Image)
		return
	}
	delete(c.items, imageID)
}
