package cache

import (
	"strings"
	"sync"
	"time"
)

// Views caches rendered HTML pages keyed by path, user and variant.
// Revalidate drops every rendering of a path so the next request re-renders
// from fresh data.
//
// Each path carries a generation that Revalidate bumps. A renderer reads the
// generation before loading its data and hands it back to Set; a body
// rendered from data older than the last Revalidate is discarded.
type Views struct {
	lru *LRUCache[[]byte]

	mu          sync.Mutex
	generations map[string]uint64
}

func NewViews(maxSize int, ttl time.Duration) *Views {
	return &Views{
		lru:         NewLRUCache[[]byte](maxSize, ttl),
		generations: make(map[string]uint64),
	}
}

func viewKey(path, userID, variant string) string {
	return path + "|" + userID + "|" + variant
}

func (v *Views) Get(path, userID, variant string) ([]byte, bool) {
	return v.lru.Get(viewKey(path, userID, variant))
}

// Generation returns the current generation of path.
func (v *Views) Generation(path string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generations[path]
}

// Set stores body unless path was revalidated after gen was read. It
// reports whether the body was stored.
func (v *Views) Set(path, userID, variant string, gen uint64, body []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generations[path] != gen {
		return false
	}
	v.lru.Set(viewKey(path, userID, variant), body)
	return true
}

// Revalidate invalidates all cached renderings of path.
func (v *Views) Revalidate(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generations[path]++
	prefix := path + "|"
	v.lru.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, prefix) })
}

func (v *Views) CleanExpired() int { return v.lru.CleanExpired() }

func (v *Views) Stats() Stats { return v.lru.Stats() }
