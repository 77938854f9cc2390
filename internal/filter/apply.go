package filter

import (
	"strings"
	"time"

	"norloworld/internal/core"
	"norloworld/internal/facets"
)

// Timestamp layouts accepted for the record date field, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	DateLayout,
}

// Result is a filtered record set with its size.
type Result struct {
	Records []core.Record `json:"records"`
	Total   int           `json:"total"`
}

// Run applies the state and wraps the outcome.
func Run(records []core.Record, s *State, fields Fields) Result {
	out := Apply(records, s, fields)
	return Result{Records: out, Total: len(out)}
}

// Apply returns the records matching every active facet (any selected value
// within a facet) and the date range. An empty state returns records as is.
func Apply(records []core.Record, s *State, fields Fields) []core.Record {
	if s == nil || s.IsEmpty() {
		return records
	}
	m := newMatcher(s, fields)
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if m.match(r) {
			out = append(out, r)
		}
	}
	return out
}

type matcher struct {
	fields   Fields
	selected map[Facet]map[string]struct{}
	window   window
}

func newMatcher(s *State, fields Fields) matcher {
	m := matcher{
		fields:   fields,
		selected: map[Facet]map[string]struct{}{},
		window:   newWindow(s.rng),
	}
	for _, f := range Facets() {
		sel := s.selected[f]
		if len(sel) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(sel))
		for _, name := range sel {
			set[facets.Canonical(name)] = struct{}{}
		}
		m.selected[f] = set
	}
	return m
}

func (m matcher) match(r core.Record) bool {
	for f, set := range m.selected {
		v, ok := m.fields.value(r, f)
		if !ok {
			return false
		}
		if _, hit := set[facets.Canonical(v)]; !hit {
			return false
		}
	}
	if m.window.active() {
		raw, ok := r.Field(m.fields.Timestamp)
		if !ok {
			return false
		}
		t, ok := ParseTimestamp(raw)
		if !ok {
			return false
		}
		return m.window.contains(t)
	}
	return true
}

// window is the half-open day range [from, until): from is the start of the
// first day, until the start of the day after the last. Zero bounds are open.
type window struct {
	from, until time.Time
}

func newWindow(r Range) window {
	var w window
	if !r.Start.IsZero() {
		w.from = startOfDay(r.Start)
	}
	if !r.End.IsZero() {
		w.until = startOfDay(r.End).AddDate(0, 0, 1)
	}
	return w
}

func (w window) active() bool {
	return !w.from.IsZero() || !w.until.IsZero()
}

func (w window) contains(t time.Time) bool {
	day := startOfDay(t)
	if !w.from.IsZero() && day.Before(w.from) {
		return false
	}
	if !w.until.IsZero() && !day.Before(w.until) {
		return false
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseTimestamp parses a record timestamp in any supported layout.
// Layouts without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
