package imagery

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ThumbCache stores rendered thumbnails on disk, keyed by the source image
// and its modification time so edited files render fresh.
type ThumbCache struct {
	dir  string
	size int
}

// NewThumbCache creates a thumbnail cache in dir. An empty dir disables
// caching.
func NewThumbCache(dir string, size int) *ThumbCache {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("imagery: could not create thumbnail cache directory: %v", err)
			dir = ""
		}
	}
	if size <= 0 {
		size = DefaultThumbSize
	}
	return &ThumbCache{dir: dir, size: size}
}

// Size is the longest thumbnail side this cache renders.
func (c *ThumbCache) Size() int { return c.size }

func (c *ThumbCache) path(img Image, modTime time.Time) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d", img.Path, modTime.UnixNano(), c.size)))
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s_%s.png", img.Slot, img.TileID, hex.EncodeToString(sum[:8])))
}

// Get returns the thumbnail for img, rendering and storing it on a miss.
func (c *ThumbCache) Get(img Image) ([]byte, error) {
	info, err := os.Stat(img.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageNotFound, err)
	}

	if c.dir != "" {
		if data, err := os.ReadFile(c.path(img, info.ModTime())); err == nil {
			return data, nil
		}
	}

	data, err := Thumbnail(img.Path, c.size)
	if err != nil {
		return nil, err
	}

	if c.dir != "" {
		if err := os.WriteFile(c.path(img, info.ModTime()), data, 0644); err != nil {
			log.Printf("imagery: failed to cache thumbnail for %s: %v", img.Path, err)
		}
	}
	return data, nil
}
