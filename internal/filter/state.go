package filter

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"norloworld/internal/core"
)

// DateLayout is the calendar-date form used for range bounds in queries.
const DateLayout = "2006-01-02"

// Query keys for the range bounds.
const (
	KeyStart = "start"
	KeyEnd   = "end"
)

// Range is an optional date range. A zero bound is unbounded on that side.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// State is the set of active facet selections plus a date range. The zero
// value is an empty state ready to use. State is not safe for concurrent
// mutation; each view owns its own.
type State struct {
	selected [len(facetKeys)][]string
	rng      Range
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

// Select adds the option's trimmed name to the facet unless it is already
// selected. Blank names are ignored.
func (s *State) Select(f Facet, opt core.FacetOption) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %d", core.ErrUnknownFacet, int(f))
	}
	name := strings.TrimSpace(opt.Name)
	if name == "" || slices.Contains(s.selected[f], name) {
		return nil
	}
	s.selected[f] = append(s.selected[f], name)
	return nil
}

// SelectName is Select for a bare name.
func (s *State) SelectName(f Facet, name string) error {
	return s.Select(f, core.FacetOption{Name: name})
}

// SetRange replaces the date range.
func (s *State) SetRange(start, end time.Time) {
	s.rng = Range{Start: start, End: end}
}

// RemoveAt removes the selection at index from the facet.
func (s *State) RemoveAt(f Facet, index int) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %d", core.ErrUnknownFacet, int(f))
	}
	sel := s.selected[f]
	if index < 0 || index >= len(sel) {
		return fmt.Errorf("%w: %s[%d] with %d selected", core.ErrIndexOutOfRange, f, index, len(sel))
	}
	s.selected[f] = slices.Delete(slices.Clone(sel), index, index+1)
	return nil
}

// Clear drops every selection and the range.
func (s *State) Clear() {
	*s = State{}
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	c := &State{rng: s.rng}
	for i, sel := range s.selected {
		c.selected[i] = slices.Clone(sel)
	}
	return c
}

// Selected returns a copy of the facet's selections in selection order.
func (s *State) Selected(f Facet) []string {
	if !f.Valid() {
		return nil
	}
	return slices.Clone(s.selected[f])
}

func (s *State) Range() Range {
	return s.rng
}

// IsEmpty reports whether the state imposes no constraint.
func (s *State) IsEmpty() bool {
	for _, sel := range s.selected {
		if len(sel) > 0 {
			return false
		}
	}
	return s.rng.IsZero()
}

// Values encodes the state as repeatable query parameters.
func (s *State) Values() url.Values {
	v := url.Values{}
	for _, f := range Facets() {
		for _, name := range s.selected[f] {
			v.Add(f.Key(), name)
		}
	}
	if !s.rng.Start.IsZero() {
		v.Set(KeyStart, s.rng.Start.Format(DateLayout))
	}
	if !s.rng.End.IsZero() {
		v.Set(KeyEnd, s.rng.End.Format(DateLayout))
	}
	return v
}

// FromValues builds a state from query parameters. Unparseable range bounds
// are left unset and reported with ErrMalformedQueryParameters; the returned
// state is usable either way.
func FromValues(v url.Values) (*State, error) {
	s := NewState()
	for _, f := range Facets() {
		for _, name := range v[f.Key()] {
			_ = s.SelectName(f, name)
		}
	}

	var bad []string
	parse := func(key string) time.Time {
		raw := strings.TrimSpace(v.Get(key))
		if raw == "" {
			return time.Time{}
		}
		t, err := time.Parse(DateLayout, raw)
		if err != nil {
			bad = append(bad, key)
			return time.Time{}
		}
		return t
	}
	s.SetRange(parse(KeyStart), parse(KeyEnd))

	if len(bad) > 0 {
		return s, fmt.Errorf("%w: %s", core.ErrMalformedQueryParameters, strings.Join(bad, ", "))
	}
	return s, nil
}

// MarshalJSON renders the state for the presentation layer.
func (s *State) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for _, f := range Facets() {
		sel := s.selected[f]
		if sel == nil {
			sel = []string{}
		}
		out[f.Key()] = sel
	}
	if !s.rng.Start.IsZero() {
		out[KeyStart] = s.rng.Start.Format(DateLayout)
	}
	if !s.rng.End.IsZero() {
		out[KeyEnd] = s.rng.End.Format(DateLayout)
	}
	return json.Marshal(out)
}
