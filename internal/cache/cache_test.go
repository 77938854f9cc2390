package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norloworld/internal/core"
	"norloworld/internal/stats"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache[T any](size int, ttl time.Duration) (*LRUCache[T], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	c, clock := newTestCache[string](10, time.Minute)
	c.Set("a", "x")
	c.Set("b", "y")

	clock.t = clock.t.Add(30 * time.Second)
	c.Set("b", "z")
	clock.t = clock.t.Add(45 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "z", v)

	clock.t = clock.t.Add(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestLRUDeleteAndPurge(t *testing.T) {
	c, _ := newTestCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	assert.Equal(t, 1, c.Size())
	c.Purge()
	assert.Equal(t, 0, c.Size())
	c.Set("c", 3)
	assert.Equal(t, 1, c.Size())
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	c, clock := newTestCache[int](10, time.Second)
	c.Set("a", 1)
	m := NewManager(nil)
	m.Register(c)

	assert.Equal(t, 0, m.CleanOnce())
	clock.t = clock.t.Add(2 * time.Second)
	assert.Equal(t, 1, m.CleanOnce())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	<-done
}

func TestStatsMemo(t *testing.T) {
	tree := core.StatsTree{}
	tree.Add("D1", "2024", core.March, "Speeding", 2)

	c, _ := newTestCache[stats.Report](10, time.Minute)
	memo := NewStatsMemo(c)
	q := stats.Query{Driver: "D1", Year: "2024", StartMonth: "JANUARY", EndMonth: "DECEMBER"}

	rep, err := memo.Run(1, tree, q)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Total)

	// Same version is served from the cache even if the tree changed.
	tree.Add("D1", "2024", core.March, "Speeding", 5)
	rep, err = memo.Run(1, tree, q)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Total)

	rep, err = memo.Run(2, tree, q)
	require.NoError(t, err)
	assert.Equal(t, 7, rep.Total)

	_, err = memo.Run(2, tree, stats.Query{Driver: "Nobody", Year: "2024", StartMonth: "JANUARY", EndMonth: "DECEMBER"})
	assert.ErrorIs(t, err, core.ErrNoDataForDriver)
	assert.Equal(t, 2, c.Size(), "errors are not cached")
}
