// Package stats slices the per-driver statistics tree down to a month range
// and flattens it into table rows.
package stats

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"norloworld/internal/core"
)

// Sliced holds the reason counts of the months retained by Slice.
type Sliced map[core.Month]core.Reasons

// Rows are not produced for reasons carrying these prefixes; the sheet uses
// them for running totals.
var pseudoReasonPrefixes = []string{"total", "runing", "running"}

// Slice returns the reason counts of driver in year for the months between
// startName and endName inclusive. Unknown month names, or a start after the
// end, give an empty result and no error. Month keys that differ only in
// case are merged.
func Slice(tree core.StatsTree, driver, year, startName, endName string) (Sliced, error) {
	years, ok := tree[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrNoDataForDriver, driver)
	}
	months, ok := years[year]
	if !ok {
		return nil, fmt.Errorf("%w: %q for %q", core.ErrNoDataForYear, year, driver)
	}

	out := Sliced{}
	start, okStart := core.ParseMonth(startName)
	end, okEnd := core.ParseMonth(endName)
	if !okStart || !okEnd || start > end {
		return out, nil
	}
	for name, reasons := range months {
		m, ok := core.ParseMonth(name)
		if !ok || m < start || m > end {
			continue
		}
		prev, seen := out[m]
		if !seen {
			out[m] = reasons
			continue
		}
		// Keys differing only in case name the same month; add them up
		// into a fresh map so the tree is left untouched.
		merged := make(core.Reasons, len(prev)+len(reasons))
		for r, n := range prev {
			merged[r] += n
		}
		for r, n := range reasons {
			merged[r] += n
		}
		out[m] = merged
	}
	return out, nil
}

// IsPseudoReason reports whether reason is an aggregate row rather than a
// real incident reason.
func IsPseudoReason(reason string) bool {
	r := strings.ToLower(strings.TrimSpace(reason))
	for _, p := range pseudoReasonPrefixes {
		if strings.HasPrefix(r, p) {
			return true
		}
	}
	return false
}

// Flatten lists the positive counts of real reasons, months in calendar
// order and reasons sorted by name.
func Flatten(s Sliced) []core.FilteredRow {
	rows := []core.FilteredRow{}
	for _, m := range core.Months() {
		reasons, ok := s[m]
		if !ok {
			continue
		}
		names := make([]string, 0, len(reasons))
		for name := range reasons {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			count := reasons[name]
			if count <= 0 || IsPseudoReason(name) {
				continue
			}
			rows = append(rows, core.FilteredRow{Month: m.String(), Reason: name, Count: count})
		}
	}
	return rows
}

// Query selects a driver's statistics over a month range of one year.
type Query struct {
	Driver     string `json:"driver"`
	Year       string `json:"year"`
	StartMonth string `json:"startMonth"`
	EndMonth   string `json:"endMonth"`
}

// WithDefaults fills empty fields: the current year and the whole calendar.
func (q Query) WithDefaults(now time.Time) Query {
	q.Driver = strings.TrimSpace(q.Driver)
	if strings.TrimSpace(q.Year) == "" {
		q.Year = strconv.Itoa(now.Year())
	}
	if strings.TrimSpace(q.StartMonth) == "" {
		q.StartMonth = core.January.String()
	}
	if strings.TrimSpace(q.EndMonth) == "" {
		q.EndMonth = core.December.String()
	}
	return q
}

// Months resolves the month bounds. ok is false when either name is
// unknown or the start falls after the end.
func (q Query) Months() (start, end core.Month, ok bool) {
	start, okStart := core.ParseMonth(q.StartMonth)
	end, okEnd := core.ParseMonth(q.EndMonth)
	if !okStart || !okEnd || start > end {
		return 0, 0, false
	}
	return start, end, true
}

// Report is the outcome of a stats query.
type Report struct {
	Query Query              `json:"query"`
	Rows  []core.FilteredRow `json:"rows"`
	Total int                `json:"total"`
}

// Run answers q against tree. A missing driver gives ErrMissingSelection and
// an invalid month range gives ErrInvalidMonthRange; both come with an empty
// report the caller can still render.
func Run(tree core.StatsTree, q Query) (Report, error) {
	rep := Report{Query: q, Rows: []core.FilteredRow{}}
	if q.Driver == "" {
		return rep, core.ErrMissingSelection
	}
	if _, _, ok := q.Months(); !ok {
		return rep, fmt.Errorf("%w: %s to %s", core.ErrInvalidMonthRange, q.StartMonth, q.EndMonth)
	}

	sliced, err := Slice(tree, q.Driver, q.Year, q.StartMonth, q.EndMonth)
	if err != nil {
		return rep, err
	}
	rep.Rows = Flatten(sliced)
	for _, r := range rep.Rows {
		rep.Total += r.Count
	}
	return rep, nil
}
