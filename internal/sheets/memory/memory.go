package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"norloworld/internal/core"
	ports "norloworld/internal/sheets"
)

// Seed file names under the data directory.
const (
	IncidentsFile = "incidents.json"
	TaxonomyFile  = "taxonomy.json"
	StatsFile     = "stats.json"
)

var (
	_ ports.Source         = (*Store)(nil)
	_ ports.IncidentWriter = (*Store)(nil)
)

// Store is an in-process data source for development and tests.
type Store struct {
	mu       sync.Mutex
	records  []core.Record
	taxonomy core.Taxonomy
	stats    core.StatsSnapshot
}

func New(records []core.Record, tax core.Taxonomy, stats core.StatsSnapshot) *Store {
	if stats.Tree == nil {
		stats.Tree = core.StatsTree{}
	}
	return &Store{records: records, taxonomy: tax, stats: stats}
}

// NewFromFiles seeds a store from the JSON files in base. Missing files fall
// back to a small built-in data set; unreadable ones are an error.
func NewFromFiles(base string) (*Store, error) {
	var records []core.Record
	tax := defaultTaxonomy()
	stats := defaultStats()

	if ok, err := readJSON(filepath.Join(base, IncidentsFile), &records); err != nil {
		return nil, err
	} else if !ok {
		records = defaultRecords()
	}

	var tf taxonomyFile
	if ok, err := readJSON(filepath.Join(base, TaxonomyFile), &tf); err != nil {
		return nil, err
	} else if ok {
		tax = tf.taxonomy()
	}

	var sf statsFile
	if ok, err := readJSON(filepath.Join(base, StatsFile), &sf); err != nil {
		return nil, err
	} else if ok {
		stats = sf.snapshot()
	}

	return New(records, tax, stats), nil
}

// ListIncidents returns a copy of the stored records.
func (s *Store) ListIncidents(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Record(nil), s.records...), nil
}

func (s *Store) ReadTaxonomy(_ context.Context) (core.Taxonomy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taxonomy, nil
}

func (s *Store) ReadStats(_ context.Context) (core.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, nil
}

// AppendIncident stores the report and returns a synthetic row reference.
func (s *Store) AppendIncident(_ context.Context, r core.IncidentReport) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r.Record(nil))
	return fmt.Sprintf("mem:%d", len(s.records)), nil
}

// readJSON decodes path into v. ok is false when the file does not exist.
func readJSON(path string, v any) (ok bool, err error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// taxonomyFile is the taxonomy payload: drivers as [name, terminal, status]
// tuples and grouped types.
type taxonomyFile struct {
	Drivers [][]string       `json:"drivers"`
	Types   []core.TypeGroup `json:"types"`
}

func (f taxonomyFile) taxonomy() core.Taxonomy {
	tax := core.Taxonomy{Drivers: make([]core.DriverRow, 0, len(f.Drivers)), Types: f.Types}
	for _, d := range f.Drivers {
		if len(d) == 0 || strings.TrimSpace(d[0]) == "" {
			continue
		}
		row := core.DriverRow{Name: strings.TrimSpace(d[0])}
		if len(d) > 1 {
			row.Terminal = strings.TrimSpace(d[1])
		}
		if len(d) > 2 {
			row.Status = strings.TrimSpace(d[2])
		}
		tax.Drivers = append(tax.Drivers, row)
	}
	if tax.Types == nil {
		tax.Types = []core.TypeGroup{}
	}
	return tax
}

// statsFile is the statistics payload: the tree plus driversStats tuples
// whose first element is the driver name.
type statsFile struct {
	Stats        core.StatsTree `json:"stats"`
	DriversStats [][]any        `json:"driversStats"`
}

func (f statsFile) snapshot() core.StatsSnapshot {
	snap := core.StatsSnapshot{Tree: f.Stats, Drivers: []string{}}
	if snap.Tree == nil {
		snap.Tree = core.StatsTree{}
	}
	for _, t := range f.DriversStats {
		if len(t) == 0 {
			continue
		}
		if name, ok := t[0].(string); ok && strings.TrimSpace(name) != "" {
			snap.Drivers = append(snap.Drivers, strings.TrimSpace(name))
		}
	}
	return snap
}

func defaultRecords() []core.Record {
	return []core.Record{
		{core.FieldDriverName: "Jane Doe", core.FieldTerminal: "Dallas", core.FieldDateTime: "2024-02-12 09:15:00", core.FieldType: "Speeding", core.FieldIncident: "Radar ticket on I-35", core.FieldStatus: "Open"},
		{core.FieldDriverName: "John Roe", core.FieldTerminal: "Houston", core.FieldDateTime: "2024-03-02 16:40:00", core.FieldType: "Accident", core.FieldIncident: "Backing collision at dock", core.FieldStatus: "Closed"},
	}
}

func defaultTaxonomy() core.Taxonomy {
	return core.Taxonomy{
		Drivers: []core.DriverRow{
			{Name: "Jane Doe", Terminal: "Dallas", Status: "Active"},
			{Name: "John Roe", Terminal: "Houston", Status: "Active"},
		},
		Types: []core.TypeGroup{
			{ColumnName: "Safety", Items: []string{"Speeding", "Accident"}},
			{ColumnName: "Compliance", Items: []string{"Logs", "Inspection"}},
		},
	}
}

func defaultStats() core.StatsSnapshot {
	tree := core.StatsTree{}
	tree.Add("Jane Doe", "2024", core.February, "Speeding", 1)
	tree.Add("John Roe", "2024", core.March, "Accident", 1)
	return core.StatsSnapshot{Tree: tree, Drivers: []string{"Jane Doe", "John Roe"}}
}
