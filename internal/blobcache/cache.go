// Package blobcache materializes remote deliverables into local, revocable
// handles so switching between files does not refetch them.
//
// Entries are evicted in insertion order: reads never refresh an entry's
// position. A handle stays valid while it is leased even after its entry
// has been evicted; it is revoked when the last lease is released.
package blobcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"

	"github.com/heartmarshall/proofdesk/internal/config"
)

// HandlePrefix marks strings issued by the cache, mirroring browser blob URLs.
const HandlePrefix = "blob:"

// Blob is the materialized content of a source URL.
type Blob struct {
	Data        []byte
	ContentType string
}

// Fetcher retrieves the bytes behind a source URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Blob, error)
}

type entry struct {
	url        string
	handle     string
	blob       Blob
	insertedAt time.Time
	leases     int
	evicted    bool
}

// EntryInfo is a read-only view of a cached entry.
type EntryInfo struct {
	URL        string
	Handle     string
	Size       int
	InsertedAt time.Time
	Leases     int
}

// scheduleFunc runs f after d. It returns a stop function.
type scheduleFunc func(d time.Duration, f func()) func() bool

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	index   *simplelru.LRU[string, *entry]
	handles map[string]*entry
	closed  bool

	flight  singleflight.Group
	fetcher Fetcher
	log     *slog.Logger

	stagger      time.Duration
	fetchTimeout time.Duration
	schedule     scheduleFunc
	now          func() time.Time

	// timers holds stop funcs of scheduled preloads; an entry is removed
	// when its timer fires. A nil value marks a timer still being armed.
	timers    map[uint64]func() bool
	nextTimer uint64

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Cache backed by fetcher.
func New(cfg config.CacheConfig, fetcher Fetcher, log *slog.Logger) (*Cache, error) {
	c := &Cache{
		handles:      make(map[string]*entry),
		timers:       make(map[uint64]func() bool),
		fetcher:      fetcher,
		log:          log.With("service", "blobcache"),
		stagger:      cfg.PreloadStagger,
		fetchTimeout: cfg.FetchTimeout,
		schedule: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		now: time.Now,
	}

	index, err := simplelru.NewLRU[string, *entry](cfg.Capacity, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create cache index: %w", err)
	}
	c.index = index
	c.bgCtx, c.bgCancel = context.WithCancel(context.Background())

	return c, nil
}

// onEvict runs under c.mu from inside index.Add/Purge.
func (c *Cache) onEvict(url string, e *entry) {
	e.evicted = true
	if e.leases == 0 {
		delete(c.handles, e.handle)
	}
	c.log.Debug("cache entry evicted",
		slog.String("url", url),
		slog.Int("leases", e.leases),
	)
}

// Resolve returns the handle for url if it is cached. It does not refresh
// the entry.
func (c *Cache) Resolve(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index.Peek(url)
	if !ok {
		return "", false
	}
	return e.handle, true
}

// Materialize returns a local handle for url, fetching it at most once.
// Concurrent calls for the same url share one fetch. On failure the raw url
// is returned so callers can fall back to it.
func (c *Cache) Materialize(ctx context.Context, url string) string {
	if h, ok := c.Resolve(url); ok {
		return h
	}

	v, err, _ := c.flight.Do(url, func() (any, error) {
		if h, ok := c.Resolve(url); ok {
			return h, nil
		}

		fetchCtx := ctx
		if c.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
			defer cancel()
		}

		blob, err := c.fetcher.Fetch(fetchCtx, url)
		if err != nil {
			return nil, err
		}
		return c.insert(url, blob)
	})
	if err != nil {
		c.log.WarnContext(ctx, "materialize failed, using source url",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return url
	}
	return v.(string)
}

func (c *Cache) insert(url string, blob Blob) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", fmt.Errorf("cache closed")
	}
	if e, ok := c.index.Peek(url); ok {
		return e.handle, nil
	}

	e := &entry{
		url:        url,
		handle:     HandlePrefix + uuid.NewString(),
		blob:       blob,
		insertedAt: c.now(),
	}
	c.handles[e.handle] = e
	c.index.Add(url, e)

	c.log.Debug("cache entry stored",
		slog.String("url", url),
		slog.Int("size", len(blob.Data)),
		slog.Int("entries", c.index.Len()),
	)
	return e.handle, nil
}

// Preload warms the cache for url in the background. Errors are dropped.
func (c *Cache) Preload(url string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if c.bgCtx.Err() != nil {
			return
		}
		c.Materialize(c.bgCtx, url)
	}()
}

// PreloadAll schedules Preload for every url not yet cached, the n-th one
// after n*stagger so large files are not all fetched at once.
func (c *Cache) PreloadAll(urls []string) {
	seen := make(map[string]struct{}, len(urls))
	n := 0
	for _, url := range urls {
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		if _, ok := c.Resolve(url); ok {
			continue
		}

		delay := time.Duration(n) * c.stagger
		n++

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		id := c.nextTimer
		c.nextTimer++
		c.timers[id] = nil
		c.mu.Unlock()

		u := url
		stop := c.schedule(delay, func() {
			c.Preload(u)
			c.timerFired(id)
		})

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			stop()
			return
		}
		if _, armed := c.timers[id]; armed {
			c.timers[id] = stop
		}
		c.mu.Unlock()
	}
}

func (c *Cache) timerFired(id uint64) {
	c.mu.Lock()
	delete(c.timers, id)
	c.mu.Unlock()
}

// pendingPreloads returns the number of preload timers that have not fired.
func (c *Cache) pendingPreloads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Open returns the content behind a live handle.
func (c *Cache) Open(handle string) (Blob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.handles[handle]
	if !ok {
		return Blob{}, false
	}
	return e.blob, true
}

// Lease keeps a handle alive while its content is on screen.
type Lease struct {
	c      *Cache
	e      *entry
	once   sync.Once
	handle string
}

// Handle returns the leased handle.
func (l *Lease) Handle() string { return l.handle }

// Release drops the lease. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.c.mu.Lock()
		defer l.c.mu.Unlock()

		l.e.leases--
		if l.e.leases == 0 && l.e.evicted {
			delete(l.c.handles, l.e.handle)
		}
	})
}

// Acquire leases the cached handle for url. It does not fetch.
func (c *Cache) Acquire(url string) (*Lease, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index.Peek(url)
	if !ok {
		return nil, false
	}
	e.leases++
	return &Lease{c: c, e: e, handle: e.handle}, true
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Len()
}

// Live returns the number of handles that can still be opened.
func (c *Cache) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Entries lists cached entries oldest first.
func (c *Cache) Entries() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]EntryInfo, 0, c.index.Len())
	for _, url := range c.index.Keys() {
		e, _ := c.index.Peek(url)
		out = append(out, EntryInfo{
			URL:        e.url,
			Handle:     e.handle,
			Size:       len(e.blob.Data),
			InsertedAt: e.insertedAt,
			Leases:     e.leases,
		})
	}
	return out
}

// Close stops pending preloads and revokes every handle, leased or not.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, stop := range c.timers {
		if stop != nil {
			stop()
		}
	}
	clear(c.timers)
	c.mu.Unlock()

	c.bgCancel()
	c.wg.Wait()

	c.mu.Lock()
	c.index.Purge()
	clear(c.handles)
	c.mu.Unlock()
}
