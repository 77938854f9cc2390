// Package filter holds the user's facet selections and narrows incident
// records by them.
package filter

import (
	"fmt"
	"strings"

	"norloworld/internal/core"
)

// Facet identifies a filterable dimension of an incident record.
type Facet int

const (
	Driver Facet = iota
	Terminal
	Type
	Status
)

var facetKeys = [...]string{
	Driver:   "driver",
	Terminal: "terminal",
	Type:     "type",
	Status:   "status",
}

// Facets returns every facet in display order.
func Facets() []Facet {
	return []Facet{Driver, Terminal, Type, Status}
}

// ParseFacet resolves a facet from its query key.
func ParseFacet(key string) (Facet, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for i, k := range facetKeys {
		if k == key {
			return Facet(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownFacet, key)
}

func (f Facet) Valid() bool {
	return f >= Driver && f <= Status
}

// Key is the facet's query-string and JSON key.
func (f Facet) Key() string {
	if !f.Valid() {
		return ""
	}
	return facetKeys[f]
}

func (f Facet) String() string {
	return f.Key()
}

// Fields binds each facet, and the date range, to a record field. Views with
// different sheet headers pass their own Fields.
type Fields struct {
	Facets    map[Facet]string
	Timestamp string
}

// DefaultFields matches the incidents sheet headers.
var DefaultFields = Fields{
	Facets: map[Facet]string{
		Driver:   core.FieldDriverName,
		Terminal: core.FieldTerminal,
		Type:     core.FieldType,
		Status:   core.FieldStatus,
	},
	Timestamp: core.FieldDateTime,
}

func (f Fields) value(r core.Record, facet Facet) (string, bool) {
	name, ok := f.Facets[facet]
	if !ok {
		return "", false
	}
	return r.Field(name)
}
