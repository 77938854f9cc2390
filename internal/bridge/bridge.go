// Package bridge carries a driver and month range from the statistics view to
// the incidents view through a query string.
package bridge

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"norloworld/internal/core"
	"norloworld/internal/filter"
	"norloworld/internal/stats"
)

// TimeLayout is the ISO-8601 UTC form of the month bounds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Query keys.
const (
	KeyDriver        = "driver"
	KeyStartMonth    = "startMonth"
	KeyEndMonth      = "endMonth"
	KeyFromOtherView = "fromOtherView"
	keyLegacyOrigin  = "fromStatsTable"
)

// Params is a decoded bridge query. Zero fields were absent or malformed.
type Params struct {
	Driver        string
	StartMonth    time.Time
	EndMonth      time.Time
	FromOtherView bool

	// Malformed names the keys that were present but could not be parsed.
	Malformed []string
}

// MonthStart returns the first instant of t's month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last millisecond of t's month in UTC.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0).Add(-time.Millisecond)
}

// Encode serializes a driver and the months containing startMonth and
// endMonth.
func Encode(driver string, startMonth, endMonth time.Time) string {
	// Built by hand to keep the key order stable for links.
	var b strings.Builder
	b.WriteString(KeyDriver + "=" + url.QueryEscape(driver))
	b.WriteString("&" + KeyStartMonth + "=" + url.QueryEscape(MonthStart(startMonth).Format(TimeLayout)))
	b.WriteString("&" + KeyEndMonth + "=" + url.QueryEscape(MonthEnd(endMonth).Format(TimeLayout)))
	b.WriteString("&" + KeyFromOtherView + "=true")
	return b.String()
}

// StatsLink builds the bridge query for a stats view selection.
func StatsLink(driver string, year int, startMonth, endMonth core.Month) string {
	start := time.Date(year, startMonth.TimeMonth(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, endMonth.TimeMonth(), 1, 0, 0, 0, 0, time.UTC)
	return Encode(driver, start, end)
}

// Decode parses a bridge query string. It never fails: anything it cannot
// read is left zero and, when present but unreadable, listed in Malformed.
func Decode(query string) Params {
	query = strings.TrimPrefix(query, "?")
	v, err := url.ParseQuery(query)
	var p Params
	if err != nil {
		// ParseQuery keeps every pair it could read.
		p.Malformed = append(p.Malformed, "query")
	}
	return decodeValues(v, p)
}

// DecodeValues is Decode for already parsed values.
func DecodeValues(v url.Values) Params {
	return decodeValues(v, Params{})
}

func decodeValues(v url.Values, p Params) Params {
	if d := strings.TrimSpace(v.Get(KeyDriver)); d != "" && d != "undefined" {
		p.Driver = d
	}
	p.StartMonth = p.parseTime(v, KeyStartMonth)
	p.EndMonth = p.parseTime(v, KeyEndMonth)
	p.FromOtherView = p.parseFlag(v, KeyFromOtherView) || p.parseFlag(v, keyLegacyOrigin)
	return p
}

func (p *Params) parseTime(v url.Values, key string) time.Time {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, filter.DateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	p.Malformed = append(p.Malformed, key)
	return time.Time{}
}

func (p *Params) parseFlag(v url.Values, key string) bool {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.Malformed = append(p.Malformed, key)
		return false
	}
	return b
}

// Err reports the malformed keys, if any, as ErrMalformedQueryParameters.
func (p Params) Err() error {
	if len(p.Malformed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", core.ErrMalformedQueryParameters, strings.Join(p.Malformed, ", "))
}

// Seed resets s and applies the bridged driver and range to it. The range
// covers whole days from the start of StartMonth to the day of EndMonth.
func (p Params) Seed(s *filter.State) {
	s.Clear()
	if p.Driver != "" {
		_ = s.SelectName(filter.Driver, p.Driver)
	}
	s.SetRange(p.StartMonth, p.EndMonth)
}

// State builds the filter state for an incidents query. A query carrying the
// cross-view flag seeds a fresh state from the bridge parameters; any other
// query is read as facet selections and a date range. The state is usable
// even when the returned error is non-nil.
func State(v url.Values) (*filter.State, error) {
	p := DecodeValues(v)
	if p.FromOtherView {
		s := filter.NewState()
		p.Seed(s)
		return s, p.Err()
	}
	return filter.FromValues(v)
}

// ForStats returns the incidents query matching a stats selection, or false
// when the selection names no driver or no valid year and month range.
func ForStats(q stats.Query) (string, bool) {
	if strings.TrimSpace(q.Driver) == "" {
		return "", false
	}
	year, err := strconv.Atoi(strings.TrimSpace(q.Year))
	if err != nil {
		return "", false
	}
	start, end, ok := q.Months()
	if !ok {
		return "", false
	}
	return StatsLink(q.Driver, year, start, end), true
}
