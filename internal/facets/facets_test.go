package facets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norloworld/internal/core"
)

func TestExtractAssignsPositionalIDs(t *testing.T) {
	opts := Extract([]string{" A ", "B", "A"}, func(s string) string { return s })
	assert.Equal(t, []core.FacetOption{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}, {ID: 2, Name: "A"}}, opts)
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	in := []core.FacetOption{
		{ID: 0, Name: "Dallas"},
		{ID: 1, Name: "Houston"},
		{ID: 2, Name: "dallas "},
		{ID: 3, Name: "Austin"},
		{ID: 4, Name: "Houston"},
	}
	got := Dedupe(in)
	assert.Equal(t, []core.FacetOption{
		{ID: 0, Name: "Dallas"},
		{ID: 1, Name: "Houston"},
		{ID: 3, Name: "Austin"},
	}, got)
}

func TestDedupeIsIdempotent(t *testing.T) {
	inputs := [][]core.FacetOption{
		nil,
		{},
		{{ID: 0, Name: "x"}},
		{{ID: 0, Name: "x"}, {ID: 1, Name: "X"}, {ID: 2, Name: " x"}},
		{{ID: 0, Name: ""}, {ID: 1, Name: "a"}, {ID: 2, Name: ""}, {ID: 3, Name: "b"}, {ID: 4, Name: "a"}},
	}
	for _, xs := range inputs {
		once := Dedupe(xs)
		assert.Equal(t, once, Dedupe(once))
	}
}

func TestFromTaxonomy(t *testing.T) {
	tax := core.Taxonomy{
		Drivers: []core.DriverRow{
			{Name: "Jane Doe", Terminal: "Dallas", Status: "Active"},
			{Name: "John Roe", Terminal: "dallas", Status: "Inactive"},
			{Name: "Ann Poe", Terminal: "", Status: "Active"},
		},
		Types: []core.TypeGroup{
			{ColumnName: "Safety", Items: []string{"Speeding", "Accident", "Speeding"}},
			{ColumnName: "Compliance", Items: []string{"Logs"}},
		},
	}

	opts := FromTaxonomy(tax)

	assert.Equal(t, []core.FacetOption{{ID: 0, Name: "Jane Doe"}, {ID: 1, Name: "John Roe"}, {ID: 2, Name: "Ann Poe"}}, opts.Drivers)
	assert.Equal(t, []core.FacetOption{{ID: 0, Name: "Dallas"}}, opts.Terminals)
	assert.Equal(t, []core.FacetOption{{ID: 0, Name: "Active"}, {ID: 1, Name: "Inactive"}}, opts.Statuses)
	require.Len(t, opts.Types, 2)
	assert.Equal(t, "Safety", opts.Types[0].ColumnName)
	assert.Equal(t, []core.FacetOption{{ID: 0, Name: "Speeding"}, {ID: 1, Name: "Accident"}}, opts.Types[0].Items)
}

func TestMonthOptions(t *testing.T) {
	opts := MonthOptions()
	require.Len(t, opts, 12)
	assert.Equal(t, core.FacetOption{ID: 0, Name: "JANUARY"}, opts[0])
	assert.Equal(t, core.FacetOption{ID: 11, Name: "DECEMBER"}, opts[11])
}

func TestFromStatsDrivers(t *testing.T) {
	got := FromStatsDrivers([]string{"D1", "", "D2", "D1"})
	assert.Equal(t, []core.FacetOption{{ID: 0, Name: "D1"}, {ID: 2, Name: "D2"}}, got)
}
