package rescuepost

import (
	"context"
	"sync"
	"time"
)

// feedLimit caps the number of published posts kept per organization.
const feedLimit = 50

type feedEntry struct {
	posts   []Post
	fetched time.Time
}

// FeedCache is an in-memory cache of the public pages' data: the
// organization list and each organization's published posts, with TTL.
type FeedCache struct {
	mu          sync.RWMutex
	orgs        []Organization
	orgsFetched time.Time
	feeds       map[string]feedEntry
	ttl         time.Duration
	store       *Store
}

// NewFeedCache creates a FeedCache backed by the given Store.
func NewFeedCache(s *Store, ttl time.Duration) *FeedCache {
	return &FeedCache{store: s, ttl: ttl, feeds: make(map[string]feedEntry)}
}

func (c *FeedCache) fresh(fetched time.Time) bool {
	return !fetched.IsZero() && time.Since(fetched) < c.ttl
}

// Invalidate drops the cached feed of org and the organization list, so
// the next read loads them again. An empty org drops everything.
func (c *FeedCache) Invalidate(org string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orgs = nil
	c.orgsFetched = time.Time{}
	if org == "" {
		c.feeds = make(map[string]feedEntry)
		return
	}
	delete(c.feeds, org)
}

// Organizations returns every organization.
func (c *FeedCache) Organizations(ctx context.Context) ([]Organization, error) {
	c.mu.RLock()
	if c.fresh(c.orgsFetched) {
		orgs := c.orgs
		c.mu.RUnlock()
		return orgs, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh(c.orgsFetched) {
		return c.orgs, nil
	}
	orgs, err := c.store.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	c.orgs = orgs
	c.orgsFetched = time.Now()
	return orgs, nil
}

// Organization returns one organization from the cached list.
func (c *FeedCache) Organization(ctx context.Context, id string) (Organization, error) {
	orgs, err := c.Organizations(ctx)
	if err != nil {
		return Organization{}, err
	}
	for _, o := range orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return Organization{}, ErrNotFound
}

// Published returns the most recently published posts of org.
func (c *FeedCache) Published(ctx context.Context, org string) ([]Post, error) {
	c.mu.RLock()
	if e, ok := c.feeds[org]; ok && c.fresh(e.fetched) {
		c.mu.RUnlock()
		return e.posts, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.feeds[org]; ok && c.fresh(e.fetched) {
		return e.posts, nil
	}
	posts, err := c.store.ListPublished(ctx, org, feedLimit)
	if err != nil {
		return nil, err
	}
	c.feeds[org] = feedEntry{posts: posts, fetched: time.Now()}
	return posts, nil
}
