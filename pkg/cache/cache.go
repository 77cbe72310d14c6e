// Package cache keeps rewrite results keyed by source identity, in memory with
// LRU eviction and on disk as msgpack.
package cache

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrKeyNotFound is returned when a key is not cached.
var ErrKeyNotFound = errors.New("key not found")

// Entry is one cached, msgpack-encoded value.
type Entry struct {
	Key        string    `msgpack:"key"`
	Value      []byte    `msgpack:"value"`
	CreatedAt  time.Time `msgpack:"created_at"`
	AccessedAt time.Time `msgpack:"accessed_at"`
}

func (e *Entry) size() int64 { return int64(len(e.Key) + len(e.Value)) }

// node links an entry into the recency list.
type node struct {
	Entry
	prev, next *node
}

// recency is a doubly-linked list, most recently used at the head.
type recency struct {
	head, tail *node
	n          int
}

func (l *recency) unlink(it *node) {
	if it.prev != nil {
		it.prev.next = it.next
	} else {
		l.head = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else {
		l.tail = it.prev
	}
	it.prev, it.next = nil, nil
	l.n--
}

func (l *recency) pushFront(it *node) {
	it.prev, it.next = nil, l.head
	if l.head != nil {
		l.head.prev = it
	}
	l.head = it
	if l.tail == nil {
		l.tail = it
	}
	l.n++
}

func (l *recency) touch(it *node) {
	if l.head == it {
		return
	}
	l.unlink(it)
	l.pushFront(it)
}

// Options configure an LRU.
type Options struct {
	// MaxEntries bounds the number of entries; 0 means unlimited.
	MaxEntries int
	// MaxBytes bounds the approximate encoded size; 0 means unlimited.
	MaxBytes int64
	// OnEvict is called for every entry dropped to make room.
	OnEvict func(key string)
}

// Stats describe cache usage.
type Stats struct {
	Entries   int   `json:"entries"`
	Bytes     int64 `json:"bytes"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// HitRate returns hits / lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// LRU is a size-bounded, concurrency-safe map of encoded values.
type LRU struct {
	mu    sync.Mutex
	items map[string]*node
	order recency
	opts  Options
	bytes int64
	stats Stats
}

// New creates an empty LRU.
func New(opts Options) *LRU {
	return &LRU{items: make(map[string]*node), opts: opts}
}

// Get decodes the value stored under key into v.
func (c *LRU) Get(key string, v any) error {
	c.mu.Lock()
	it, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		c.mu.Unlock()
		return ErrKeyNotFound
	}
	c.stats.Hits++
	it.AccessedAt = time.Now()
	c.order.touch(it)
	raw := it.Value
	c.mu.Unlock()

	if err := msgpack.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	return nil
}

// Put encodes v and stores it under key.
func (c *LRU) Put(key string, v any) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[key]; ok {
		c.bytes -= it.size()
		it.Value, it.AccessedAt = raw, now
		c.bytes += it.size()
		c.order.touch(it)
	} else {
		it := &node{Entry: Entry{Key: key, Value: raw, CreatedAt: now, AccessedAt: now}}
		c.items[key] = it
		c.order.pushFront(it)
		c.bytes += it.size()
	}
	c.evict()
	return nil
}

// Delete drops key.
func (c *LRU) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[key]; ok {
		c.remove(it)
	}
}

// Clear drops every entry and resets the counters.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*node)
	c.order = recency{}
	c.bytes = 0
	c.stats = Stats{}
}

// Len returns the number of entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the usage counters.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.items)
	s.Bytes = c.bytes
	return s
}

func (c *LRU) remove(it *node) {
	c.order.unlink(it)
	delete(c.items, it.Key)
	c.bytes -= it.size()
}

func (c *LRU) over() bool {
	if c.opts.MaxEntries > 0 && c.order.n > c.opts.MaxEntries {
		return true
	}
	return c.opts.MaxBytes > 0 && c.bytes > c.opts.MaxBytes && c.order.n > 1
}

func (c *LRU) evict() {
	for c.over() {
		it := c.order.tail
		c.remove(it)
		c.stats.Evictions++
		if c.opts.OnEvict != nil {
			c.opts.OnEvict(it.Key)
		}
	}
}

// snapshot is the persisted form of an LRU.
type snapshot struct {
	Version int     `msgpack:"version"`
	Entries []Entry `msgpack:"entries"`
}

const snapshotVersion = 1

// Save writes every entry, least recently used first.
func (c *LRU) Save(w io.Writer) error {
	c.mu.Lock()
	snap := snapshot{Version: snapshotVersion, Entries: make([]Entry, 0, len(c.items))}
	for it := c.order.tail; it != nil; it = it.prev {
		snap.Entries = append(snap.Entries, it.Entry)
	}
	c.mu.Unlock()
	return msgpack.NewEncoder(w).Encode(&snap)
}

// Load replaces the contents with a snapshot written by Save. Entries beyond
// the configured limits are evicted oldest first.
func (c *LRU) Load(r io.Reader) error {
	var snap snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decoding cache snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("cache snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*node, len(snap.Entries))
	c.order = recency{}
	c.bytes = 0
	for _, e := range snap.Entries {
		it := &node{Entry: e}
		c.items[e.Key] = it
		c.order.pushFront(it)
		c.bytes += it.size()
	}
	c.evict()
	return nil
}
