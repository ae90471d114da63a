package metadata

import (
	"log"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/lox/worldstrat/internal/columns"
	"github.com/lox/worldstrat/internal/metrics"
	"github.com/lox/worldstrat/internal/table"
)

// DefaultCacheEntries bounds the number of memoised tables.
const DefaultCacheEntries = 16

// Entry is a memoised load result: the table and its automatic column
// resolution, computed once per table.
type Entry struct {
	Path       string
	Table      *table.Table
	Resolution columns.Resolution
	LoadedAt   time.Time

	size    int64
	modTime time.Time
}

// Observer is told about every file read the cache performs.
type Observer interface {
	Loaded(path string, format Format, t *table.Table, err error)
}

// Cache memoises Load by the literal path string. An entry is re-read when
// the file's size or modification time changes. Concurrent loads of the
// same path share one read.
type Cache struct {
	entries *lru.Cache[string, *Entry]
	group   singleflight.Group
	load    func(path string) (*table.Table, error)

	observer Observer
}

// NewCache creates a cache holding at most size tables.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheEntries
	}
	entries, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries, load: Load}, nil
}

// Load returns the memoised entry for path, reading the file on a miss.
func (c *Cache) Load(path string) (*Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.entries.Remove(path)
		metrics.MetadataLoadsTotal.WithLabelValues(string(DetectFormat(path)), "error").Inc()
		return nil, &LoadError{Path: path, Reason: "stat", Err: err}
	}

	if e, ok := c.entries.Get(path); ok {
		if e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
			metrics.LoadCacheLookups.WithLabelValues("hit").Inc()
			return e, nil
		}
		metrics.LoadCacheLookups.WithLabelValues("stale").Inc()
		log.Printf("metadata: %s changed on disk, reloading", path)
	} else {
		metrics.LoadCacheLookups.WithLabelValues("miss").Inc()
	}

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		t, err := c.load(path)
		if c.observer != nil {
			c.observer.Loaded(path, DetectFormat(path), t, err)
		}
		if err != nil {
			return nil, err
		}
		e := &Entry{
			Path:       path,
			Table:      t,
			Resolution: columns.ResolveAll(t, nil),
			LoadedAt:   time.Now(),
			size:       info.Size(),
			modTime:    info.ModTime(),
		}
		c.entries.Add(path, e)
		return e, nil
	})
	if err != nil {
		c.entries.Remove(path)
		return nil, err
	}
	return v.(*Entry), nil
}

// SetObserver registers o for subsequent reads. Call before use.
func (c *Cache) SetObserver(o Observer) { c.observer = o }

// Invalidate drops the entry for path, if any.
func (c *Cache) Invalidate(path string) {
	if c.entries.Remove(path) {
		log.Printf("metadata: invalidated %s", path)
	}
}

// Len returns the number of memoised tables.
func (c *Cache) Len() int { return c.entries.Len() }
