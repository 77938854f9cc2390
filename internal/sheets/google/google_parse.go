package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"norloworld/internal/core"
)

// parseIncidents turns a values matrix whose first row is the header into
// header-keyed records. Blank header cells and fully blank rows are skipped.
func parseIncidents(values [][]any) []core.Record {
	if len(values) == 0 {
		return []core.Record{}
	}
	headers := toStrings(values[0])
	out := make([]core.Record, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := core.Record{}
		blank := true
		for i, h := range headers {
			if h == "" || i >= len(row) {
				continue
			}
			v := cell(row[i])
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			rec[h] = v
			blank = false
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out
}

// parseDrivers reads name, terminal, status rows (no header).
func parseDrivers(values [][]any) []core.DriverRow {
	out := make([]core.DriverRow, 0, len(values))
	for _, row := range values {
		cols := toStrings(row)
		name := safeGet(cols, 0)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		out = append(out, core.DriverRow{
			Name:     name,
			Terminal: safeGet(cols, 1),
			Status:   safeGet(cols, 2),
		})
	}
	return out
}

// parseTypes reads a matrix whose header row names the type groups and
// whose columns list the items of each group.
func parseTypes(values [][]any) []core.TypeGroup {
	if len(values) == 0 {
		return []core.TypeGroup{}
	}
	headers := toStrings(values[0])
	groups := make([]core.TypeGroup, 0, len(headers))
	for col, name := range headers {
		if name == "" {
			continue
		}
		g := core.TypeGroup{ColumnName: name, Items: []string{}}
		for _, row := range values[1:] {
			if v := safeGet(toStrings(row), col); v != "" {
				g.Items = append(g.Items, v)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// parseStats reads Driver, Year, Month, Reason, Count rows (no header) into
// a statistics tree. Rows with an unknown month, or a count that is not a
// non-negative number, are skipped and reported in skipped.
func parseStats(values [][]any) (snap core.StatsSnapshot, skipped int) {
	snap = core.StatsSnapshot{Tree: core.StatsTree{}, Drivers: []string{}}
	seen := map[string]struct{}{}
	for _, row := range values {
		cols := toStrings(row)
		driver, year, month, reason := safeGet(cols, 0), safeGet(cols, 1), safeGet(cols, 2), safeGet(cols, 3)
		if driver == "" && year == "" {
			continue
		}
		m, ok := core.ParseMonth(month)
		if !ok || driver == "" || year == "" || reason == "" {
			skipped++
			continue
		}
		count, ok := parseCount(safeGet(cols, 4))
		if !ok {
			skipped++
			continue
		}
		snap.Tree.Add(driver, year, m, reason, count)
		if _, dup := seen[driver]; !dup {
			seen[driver] = struct{}{}
			snap.Drivers = append(snap.Drivers, driver)
		}
	}
	return snap, skipped
}

// incidentRow lays out a report along the incidents header. Columns the
// report has no value for are left empty.
func incidentRow(headers []string, r core.IncidentReport, loc *time.Location) []any {
	rec := r.Record(loc)
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = ""
		for field, v := range rec {
			if strings.EqualFold(h, field) {
				row[i] = v
				break
			}
		}
	}
	return row
}

// parseCount reads a non-negative count. Commas are grouping separators, as
// in a formatted "1,234".
func parseCount(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int(f + 0.5), true
}

// cell normalizes a Sheets value: strings are trimmed, numbers and booleans
// pass through.
func cell(v any) any {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64, bool:
		return val
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
