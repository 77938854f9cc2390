// Package facets derives the option lists used to populate filter
// selections from raw taxonomy and statistics data.
package facets

import (
	"strings"

	"norloworld/internal/core"
)

// Options holds every facet option set a view needs.
type Options struct {
	Drivers   []core.FacetOption `json:"drivers"`
	Terminals []core.FacetOption `json:"terminals"`
	Statuses  []core.FacetOption `json:"statuses"`
	Types     []core.OptionGroup `json:"types"`
}

// Canonical is the comparison form of an option or field value.
func Canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Extract returns one option per element of src, named by key. IDs are
// positional.
func Extract[T any](src []T, key func(T) string) []core.FacetOption {
	out := make([]core.FacetOption, 0, len(src))
	for i, v := range src {
		out = append(out, core.FacetOption{ID: i, Name: strings.TrimSpace(key(v))})
	}
	return out
}

// Dedupe keeps the first option for each canonical name, preserving the
// first-seen order.
func Dedupe(opts []core.FacetOption) []core.FacetOption {
	seen := make(map[string]struct{}, len(opts))
	out := make([]core.FacetOption, 0, len(opts))
	for _, o := range opts {
		key := Canonical(o.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, o)
	}
	return out
}

// NonBlank drops options with an empty name.
func NonBlank(opts []core.FacetOption) []core.FacetOption {
	out := make([]core.FacetOption, 0, len(opts))
	for _, o := range opts {
		if strings.TrimSpace(o.Name) != "" {
			out = append(out, o)
		}
	}
	return out
}

// FromTaxonomy builds the record-view option sets.
func FromTaxonomy(tax core.Taxonomy) Options {
	build := func(key func(core.DriverRow) string) []core.FacetOption {
		return Dedupe(NonBlank(Extract(tax.Drivers, key)))
	}
	opts := Options{
		Drivers:   build(func(d core.DriverRow) string { return d.Name }),
		Terminals: build(func(d core.DriverRow) string { return d.Terminal }),
		Statuses:  build(func(d core.DriverRow) string { return d.Status }),
		Types:     make([]core.OptionGroup, 0, len(tax.Types)),
	}
	for _, g := range tax.Types {
		items := Dedupe(NonBlank(Extract(g.Items, func(s string) string { return s })))
		opts.Types = append(opts.Types, core.OptionGroup{ColumnName: g.ColumnName, Items: items})
	}
	return opts
}

// FromStatsDrivers builds the driver options for the statistics view.
func FromStatsDrivers(drivers []string) []core.FacetOption {
	return Dedupe(NonBlank(Extract(drivers, func(s string) string { return s })))
}

// MonthOptions lists the twelve months in calendar order.
func MonthOptions() []core.FacetOption {
	return Extract(core.Months(), core.Month.String)
}
