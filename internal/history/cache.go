package history

import (
	"context"
	"sync"
	"time"

	"github.com/ashita-ai/mamori/internal/model"
)

// Cache is a short-TTL bounded in-memory window of recent assessments per
// user. It sits in front of the persistent store so the trend analysis on
// the hot analyze path does not hit the database for users who were just
// assessed.
//
// Key: user id. Value: most recent assessments (bounded) + expiry time.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxPerUser int
	done       chan struct{}
}

type cacheEntry struct {
	assessments []model.CrisisAssessment
	expiresAt   time.Time
}

// NewCache creates a cache keeping at most maxPerUser assessments per user
// for ttl. Call Close to stop the background eviction goroutine.
func NewCache(ttl time.Duration, maxPerUser int) *Cache {
	if maxPerUser <= 0 {
		maxPerUser = 20
	}
	c := &Cache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxPerUser: maxPerUser,
		done:       make(chan struct{}),
	}
	go c.evictLoop()
	return c
}

// Record appends an assessment to the user's cached window, refreshing the
// entry's TTL.
func (c *Cache) Record(a model.CrisisAssessment) {
	if a.UserID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[a.UserID]
	entry.assessments = append(entry.assessments, a)
	if len(entry.assessments) > c.maxPerUser {
		entry.assessments = entry.assessments[len(entry.assessments)-c.maxPerUser:]
	}
	entry.expiresAt = time.Now().Add(c.ttl)
	c.entries[a.UserID] = entry
}

// Recent returns the cached assessments for userID within window and true,
// or nil and false on miss or expiry.
func (c *Cache) Recent(userID string, window time.Duration) ([]model.CrisisAssessment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[userID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	cutoff := time.Now().Add(-window)
	out := make([]model.CrisisAssessment, 0, len(entry.assessments))
	for _, a := range entry.assessments {
		if !a.Timestamp.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, true
}

// Close stops the background eviction goroutine.
func (c *Cache) Close() {
	close(c.done)
}

func (c *Cache) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// CachedStore layers the Cache in front of a persistent Store. Reads hit the
// cache first; on a miss the persistent result backfills the cache so the
// next analysis for the same user stays in memory.
type CachedStore struct {
	cache *Cache
	store Store
}

// NewCachedStore wires cache in front of store. store may be nil when the
// engine runs without persistence; the cache is then the only history.
func NewCachedStore(cache *Cache, store Store) *CachedStore {
	return &CachedStore{cache: cache, store: store}
}

// Record adds a freshly produced assessment to the cached window.
func (s *CachedStore) Record(a model.CrisisAssessment) {
	s.cache.Record(a)
}

// RecentAssessments implements Store.
func (s *CachedStore) RecentAssessments(ctx context.Context, userID string, window time.Duration) ([]model.CrisisAssessment, error) {
	if cached, ok := s.cache.Recent(userID, window); ok {
		return cached, nil
	}
	if s.store == nil {
		return nil, nil
	}
	assessments, err := s.store.RecentAssessments(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	for _, a := range assessments {
		s.cache.Record(a)
	}
	return assessments, nil
}
