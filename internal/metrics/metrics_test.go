package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norloworld/internal/cache"
	"norloworld/internal/core"
	"norloworld/internal/snapshot"
)

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector()
	require.NotPanics(t, func() { c.Register(reg) })

	c.ObserveHTTP("GET", "/api/stats", 200, 15*time.Millisecond)
	c.ObserveHTTP("GET", "", 404, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/stats", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestObserveRefresh(t *testing.T) {
	c := NewCollector()
	c.ObserveRefresh(&snapshot.Snapshot{Records: make([]core.Record, 3), Version: 7}, nil, time.Second)
	c.ObserveRefresh(nil, errors.New("down"), time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.SnapshotRefreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SnapshotRefreshes.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.SnapshotRecords))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.SnapshotVersion))
}

func TestOutcomeLabels(t *testing.T) {
	c := NewCollector()
	c.ObserveSubmission(true, nil)
	c.ObserveSubmission(false, &core.MissingFieldsError{Fields: []string{"incident"}})
	c.ObserveSync("a", nil)
	c.ObserveSync("b", errors.New("quota"))
	c.ObserveStats(nil)
	c.ObserveStats(fmt.Errorf("driver x: %w", core.ErrNoDataForDriver))
	c.ObserveStats(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Submissions.WithLabelValues("queued", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Submissions.WithLabelValues("direct", "missing_required_field")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Syncs.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StatsQuery.WithLabelValues("no_data_for_driver")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StatsQuery.WithLabelValues("error")))
}

func TestRegisterCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	lru := cache.NewLRUCache[int](4, time.Minute)
	RegisterCache(reg, "stats", lru)

	lru.Set("a", 1)
	lru.Get("a")
	lru.Get("b")

	n, err := testutil.GatherAndCount(reg, "incidents_cache_hits_total", "incidents_cache_misses_total", "incidents_cache_entries")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
