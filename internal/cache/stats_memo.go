package cache

import (
	"strconv"
	"strings"

	"norloworld/internal/core"
	"norloworld/internal/stats"
)

// StatsMemo memoizes stats reports per snapshot version and query. Failed
// queries are not cached.
type StatsMemo struct {
	cache Cache[stats.Report]
}

func NewStatsMemo(c Cache[stats.Report]) *StatsMemo {
	return &StatsMemo{cache: c}
}

// Run returns the cached report for version and q, computing it from tree
// on a miss.
func (m *StatsMemo) Run(version uint64, tree core.StatsTree, q stats.Query) (stats.Report, error) {
	key := statsKey(version, q)
	if rep, ok := m.cache.Get(key); ok {
		return rep, nil
	}
	rep, err := stats.Run(tree, q)
	if err != nil {
		return rep, err
	}
	m.cache.Set(key, rep)
	return rep, nil
}

func statsKey(version uint64, q stats.Query) string {
	return strings.Join([]string{
		strconv.FormatUint(version, 10),
		q.Driver,
		q.Year,
		q.StartMonth,
		q.EndMonth,
	}, "\x1f")
}
