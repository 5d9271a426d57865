package cache

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries is the maximum number of files a generation may hold
const DefaultMaxEntries = 65534

var (
	// ErrTooManyEntries represents a content tree holding more files than the cache allows
	ErrTooManyEntries = errors.New("too many files for cache")
)

// Generation is one complete, immutable snapshot of the path to content table
type Generation struct {
	// ID counts the generations published by a cache, starting at 1
	ID     uint64
	Loaded time.Time
	t      *table
}

// Find returns the entry stored for path. A nil generation holds nothing.
func (g *Generation) Find(path string) (*Entry, bool) {
	if g == nil {
		return nil, false
	}
	return g.t.find(path)
}

// Len returns the number of entries in the generation
func (g *Generation) Len() int {
	if g == nil {
		return 0
	}
	return g.t.count
}

// Capacity returns the number of slots in the generation's table
func (g *Generation) Capacity() int {
	if g == nil {
		return 0
	}
	return g.t.capacity()
}

// Size returns the total content size of the generation in bytes
func (g *Generation) Size() int64 {
	var n int64
	if g != nil {
		g.t.each(func(e *Entry) { n += int64(e.Len()) })
	}
	return n
}

// New returns a new Cache instance serving the tree under root.
// Nothing is loaded until Load is called.
func New(root string, maxEntries int) (*Cache, error) {
	if root == "" {
		return nil, errors.New("content root not provided")
	}
	if maxEntries < 1 {
		return nil, errors.Errorf("invalid maximum cache size %d", maxEntries)
	}
	return &Cache{
		root:       root,
		maxEntries: maxEntries,
	}, nil
}

// Cache represents a cache instance.
// Readers take the current generation with a single atomic load; reloads
// build a new generation off to the side and publish it with a single
// atomic store, so a reader never sees a partially built table.
type Cache struct {
	root       string
	maxEntries int
	current    atomic.Pointer[Generation]
	ids        atomic.Uint64
	group      singleflight.Group
	onLoad     func(*Generation, error)
}

// OnLoad registers fn to be called after every rebuild with its outcome.
// It must be set before the cache is shared.
func (c *Cache) OnLoad(fn func(*Generation, error)) {
	c.onLoad = fn
}

// Root returns the directory the cache is loaded from
func (c *Cache) Root() string {
	return c.root
}

// Current returns the live generation, nil before the first successful load.
// Callers that need consistent answers across several lookups should hold
// on to the returned generation.
func (c *Cache) Current() *Generation {
	return c.current.Load()
}

// Find looks path up in the live generation
func (c *Cache) Find(path string) (*Entry, bool) {
	return c.Current().Find(path)
}

// Load rebuilds the cache from disk and swaps the new generation in.
// On failure the previous generation stays live.
// Concurrent calls share one rebuild.
func (c *Cache) Load() (*Generation, error) {
	v, err, shared := c.group.Do("load", func() (interface{}, error) {
		g, err := c.load()
		if c.onLoad != nil {
			c.onLoad(g, err)
		}
		return g, err
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("cache load shared with a concurrent caller")
	}
	return v.(*Generation), nil
}

func (c *Cache) load() (*Generation, error) {
	start := time.Now()
	log.Infof("Loading cache from %s", c.root)
	entries, err := loadTree(c.root, c.maxEntries)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cache")
	}
	g := build(entries)
	g.ID = c.ids.Add(1)
	g.Loaded = time.Now()

	old := c.current.Swap(g)
	if g.Len() == 0 {
		log.Warnf("content root %s holds no files", c.root)
	}
	log.Infof("cache generation %d: %d files, %d slots, %d bytes in %s",
		g.ID, g.Len(), g.Capacity(), g.Size(), time.Since(start).Round(time.Millisecond))
	if old != nil {
		log.Debugf("retired cache generation %d", old.ID)
	}
	return g, nil
}

// build places entries in a table sized so that no growth is needed
func build(entries []*Entry) *Generation {
	t := newTable(sizeFor(len(entries)))
	for _, e := range entries {
		t.insert(e)
	}
	return &Generation{t: t}
}
