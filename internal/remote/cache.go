package remote

import (
	"sync"
	"time"
)

// Tag types used for cache invalidation.
const (
	TagConversations = "Conversations"
	TagMessages      = "Messages"
	TagContacts      = "Contacts"
)

// ListID marks the collection-level tag of a type.
const ListID = "LIST"

// Cache lifetimes per resource.
const (
	ConversationsTTL = 60 * time.Second
	MessagesTTL      = 30 * time.Second
)

// Tag identifies cached data that a mutation can invalidate.
type Tag struct {
	Type string
	ID   string
}

type cacheEntry struct {
	body    []byte
	expires time.Time
	tags    []Tag
}

// Cache holds successful GET bodies until they expire or a tag they carry is
// invalidated. It lives in memory only.
type Cache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewCache creates an empty cache. A nil now uses time.Now.
func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{now: now, entries: make(map[string]cacheEntry)}
}

// Get returns the cached body for key if it has not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.body, true
}

// Put stores body under key for ttl, labelled with tags.
func (c *Cache) Put(key string, body []byte, ttl time.Duration, tags ...Tag) {
	if c == nil || ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{body: body, expires: c.now().Add(ttl), tags: tags}
	c.mu.Unlock()
}

// Invalidate drops every entry carrying any of tags and returns how many were dropped.
func (c *Cache) Invalidate(tags ...Tag) int {
	if c == nil || len(tags) == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if hasAnyTag(e.tags, tags) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Len returns the number of live and expired entries still held.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func hasAnyTag(have, want []Tag) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
