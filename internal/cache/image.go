package cache

import (
	"image"
	"sync"
)

// ImageCache maps picture URLs to their decoded images.
// Once full, the oldest entry is evicted first.
type ImageCache struct {
	mu      sync.RWMutex
	images  map[string]image.Image
	order   []string
	maxSize int
}

// NewImageCache creates an ImageCache holding at most maxSize images.
// A maxSize below 1 means unbounded.
func NewImageCache(maxSize int) *ImageCache {
	return &ImageCache{
		images:  make(map[string]image.Image),
		maxSize: maxSize,
	}
}

// Get retrieves a decoded image by URL
func (c *ImageCache) Get(url string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[url]
	return img, ok
}

// Set stores a decoded image by URL
func (c *ImageCache) Set(url string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[url]; !ok {
		c.order = append(c.order, url)
	}
	c.images[url] = img
	for c.maxSize > 0 && len(c.order) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.images, oldest)
	}
}

// Len returns the number of cached images
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Reset clears all images from the cache
func (c *ImageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = make(map[string]image.Image)
	c.order = nil
}
