package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"norloworld/internal/bridge"
	"norloworld/internal/core"
	"norloworld/internal/filter"
	"norloworld/internal/stats"
)

// maxReportBytes bounds a submission body, attachment included.
const maxReportBytes = 12 << 20

// Accepted layouts for a submitted datetime; HTML datetime-local inputs
// send the last two.
var reportTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseStatsQuery reads driver, year, startMonth and endMonth, filling the
// defaults for the current year.
func ParseStatsQuery(query url.Values, now time.Time) stats.Query {
	return stats.Query{
		Driver:     sanitizeInput(query.Get("driver")),
		Year:       sanitizeInput(query.Get("year")),
		StartMonth: sanitizeInput(query.Get("startMonth")),
		EndMonth:   sanitizeInput(query.Get("endMonth")),
	}.WithDefaults(now)
}

// ParseIncidentQuery builds the filter state for an incidents request; see
// bridge.State.
func ParseIncidentQuery(query url.Values) (*filter.State, error) {
	return bridge.State(query)
}

// reportPayload mirrors core.IncidentReport with a lenient datetime.
type reportPayload struct {
	DriverName  string           `json:"driverName"`
	DateTime    string           `json:"datetime"`
	Description string           `json:"description"`
	Incident    string           `json:"incident"`
	SubmittedBy string           `json:"submittedBy"`
	File        *core.Attachment `json:"file,omitempty"`
}

// errBadPayload marks bodies that are not a readable report.
var errBadPayload = errors.New("invalid request body")

// DecodeReport reads a JSON incident report. An empty datetime means now.
func DecodeReport(r *http.Request, now time.Time) (core.IncidentReport, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxReportBytes))
	if err != nil {
		return core.IncidentReport{}, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	var p reportPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return core.IncidentReport{}, fmt.Errorf("%w: %v", errBadPayload, err)
	}

	rep := core.IncidentReport{
		DriverName:  sanitizeInput(p.DriverName),
		Description: sanitizeInput(p.Description),
		Incident:    sanitizeInput(p.Incident),
		SubmittedBy: sanitizeInput(p.SubmittedBy),
		DateTime:    now,
	}
	if p.File != nil && (p.File.FileName != "" || p.File.Content != "") {
		f := *p.File
		f.FileName = sanitizeInput(f.FileName)
		rep.File = &f
	}
	if raw := strings.TrimSpace(p.DateTime); raw != "" {
		t, ok := parseReportTime(raw)
		if !ok {
			return core.IncidentReport{}, fmt.Errorf("%w: datetime %q", errBadPayload, raw)
		}
		rep.DateTime = t
	}
	return rep, nil
}

func parseReportTime(raw string) (time.Time, bool) {
	for _, layout := range reportTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
