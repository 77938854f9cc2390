package core

type (
	// Reasons maps an incident reason to its count for one month.
	Reasons map[string]int

	// StatsTree is keyed driver -> year -> month name -> reason.
	StatsTree map[string]map[string]map[string]Reasons

	// StatsSnapshot is the statistics payload: the tree plus the list of
	// drivers that have statistics.
	StatsSnapshot struct {
		Tree    StatsTree `json:"stats"`
		Drivers []string  `json:"driversStats"`
	}

	FilteredRow struct {
		Month  string `json:"month"`
		Reason string `json:"reason"`
		Count  int    `json:"count"`
	}
)

// Add increments the count for driver/year/month/reason, creating the
// intermediate levels as needed.
func (t StatsTree) Add(driver, year string, month Month, reason string, count int) {
	years, ok := t[driver]
	if !ok {
		years = map[string]map[string]Reasons{}
		t[driver] = years
	}
	months, ok := years[year]
	if !ok {
		months = map[string]Reasons{}
		years[year] = months
	}
	reasons, ok := months[month.String()]
	if !ok {
		reasons = Reasons{}
		months[month.String()] = reasons
	}
	reasons[reason] += count
}
