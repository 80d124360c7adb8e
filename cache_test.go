package rescuepost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedCacheServesUntilInvalidated(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveOrganization(ctx, Organization{ID: "happy-paws", Name: "Happy Paws"}))
	c := NewFeedCache(s, time.Hour)

	posts, err := c.Published(ctx, "happy-paws")
	require.NoError(t, err)
	assert.Empty(t, posts)

	p := storePost("p1", "happy-paws", StatusPublished, storeBase)
	p.PublishedAt = storeBase
	require.NoError(t, s.SavePost(ctx, p))

	posts, err = c.Published(ctx, "happy-paws")
	require.NoError(t, err)
	assert.Empty(t, posts, "cached feed is served within the TTL")

	c.Invalidate("happy-paws")
	posts, err = c.Published(ctx, "happy-paws")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
}

func TestFeedCacheOrganizations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveOrganization(ctx, Organization{ID: "happy-paws", Name: "Happy Paws"}))
	c := NewFeedCache(s, time.Hour)

	o, err := c.Organization(ctx, "happy-paws")
	require.NoError(t, err)
	assert.Equal(t, "Happy Paws", o.Name)

	require.NoError(t, s.SaveOrganization(ctx, Organization{ID: "second-chance", Name: "Second Chance"}))
	_, err = c.Organization(ctx, "second-chance")
	assert.ErrorIs(t, err, ErrNotFound)

	c.Invalidate("")
	orgs, err := c.Organizations(ctx)
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
}

func TestFeedCacheExpires(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	c := NewFeedCache(s, time.Nanosecond)

	orgs, err := c.Organizations(ctx)
	require.NoError(t, err)
	assert.Empty(t, orgs)

	require.NoError(t, s.SaveOrganization(ctx, Organization{ID: "happy-paws", Name: "Happy Paws"}))
	time.Sleep(time.Millisecond)
	orgs, err = c.Organizations(ctx)
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
}
