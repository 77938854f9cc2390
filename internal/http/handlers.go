package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"norloworld/internal/bridge"
	"norloworld/internal/core"
	"norloworld/internal/facets"
	"norloworld/internal/filter"
	"norloworld/internal/log"
	"norloworld/internal/snapshot"
	"norloworld/internal/stats"
)

// current returns the snapshot for this request, or writes 503.
func (s *Server) current(w http.ResponseWriter) (*snapshot.Snapshot, bool) {
	snap, err := s.snapshots.Current()
	if err != nil {
		ServiceUnavailableError(err).Write(w)
		return nil, false
	}
	return snap, true
}

type optionsResponse struct {
	facets.Options
	Months       []core.FacetOption `json:"months"`
	StatsDrivers []core.FacetOption `json:"statsDrivers"`
	Version      uint64             `json:"version"`
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	NewJSONResponse().Body(optionsResponse{
		Options:      snap.Options,
		Months:       facets.MonthOptions(),
		StatsDrivers: facets.FromStatsDrivers(snap.Stats.Drivers),
		Version:      snap.Version,
	}).Write(w)
}

// badge is one active selection with the query that removes it.
type badge struct {
	Facet       string `json:"facet"`
	Index       int    `json:"index"`
	Label       string `json:"label"`
	RemoveQuery string `json:"removeQuery"`
}

type attachmentLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type incidentView struct {
	Fields      core.Record      `json:"fields"`
	Attachments []attachmentLink `json:"attachments"`
}

type incidentsResponse struct {
	Filters *filter.State  `json:"filters"`
	Badges  []badge        `json:"badges"`
	Query   string         `json:"query"`
	Total   int            `json:"total"`
	Records []incidentView `json:"records"`
	Version uint64         `json:"version"`
	Error   *ErrorBody     `json:"error,omitempty"`
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	state, qerr := ParseIncidentQuery(r.URL.Query())
	if qerr != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Malformed incidents query",
			log.FieldQuery, r.URL.RawQuery, log.FieldError, qerr)
	}

	res := filter.Run(snap.Records, state, filter.DefaultFields)
	views := make([]incidentView, 0, len(res.Records))
	for _, rec := range res.Records {
		views = append(views, newIncidentView(rec))
	}

	NewJSONResponse().Body(incidentsResponse{
		Filters: state,
		Badges:  badges(state),
		Query:   state.Values().Encode(),
		Total:   res.Total,
		Records: views,
		Version: snap.Version,
		Error:   NewErrorBody(qerr),
	}).Write(w)
}

func newIncidentView(rec core.Record) incidentView {
	links := rec.Attachments()
	v := incidentView{Fields: rec, Attachments: make([]attachmentLink, 0, len(links))}
	for i, link := range links {
		v.Attachments = append(v.Attachments, attachmentLink{Label: fmt.Sprintf("File %d", i+1), URL: link})
	}
	return v
}

// badges lists every active selection, facets first and the date range
// last, each with the query for the state without it.
func badges(state *filter.State) []badge {
	out := []badge{}
	for _, f := range filter.Facets() {
		for i, name := range state.Selected(f) {
			without := state.Clone()
			_ = without.RemoveAt(f, i)
			out = append(out, badge{Facet: f.Key(), Index: i, Label: name, RemoveQuery: without.Values().Encode()})
		}
	}
	if rng := state.Range(); !rng.IsZero() {
		without := state.Clone()
		without.SetRange(time.Time{}, time.Time{})
		out = append(out, badge{Facet: "range", Label: rangeLabel(rng), RemoveQuery: without.Values().Encode()})
	}
	return out
}

func rangeLabel(rng filter.Range) string {
	switch {
	case rng.End.IsZero():
		return "from " + rng.Start.Format(filter.DateLayout)
	case rng.Start.IsZero():
		return "until " + rng.End.Format(filter.DateLayout)
	default:
		return rng.Start.Format(filter.DateLayout) + " to " + rng.End.Format(filter.DateLayout)
	}
}

func (s *Server) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	rep, err := DecodeReport(r, s.now())
	if err != nil {
		BadRequestError(err).Write(w)
		return
	}

	res, err := s.incidents.Submit(r.Context(), rep)
	if s.metrics != nil {
		s.metrics.ObserveSubmission(res.Queued, err)
	}
	switch {
	case errors.Is(err, core.ErrMissingRequiredField), errors.Is(err, core.ErrDescriptionTooLong):
		UnprocessableEntityError(err).Write(w)
		return
	case err != nil:
		s.events.LogError(r.Context(), "Incident submission failed", err, "submit_failed", log.OpCreate,
			log.NewFields().WithIncident("", rep.DriverName, ""))
		InternalServerError("could not save the incident").Write(w)
		return
	}

	if s.snapshots != nil {
		s.refreshAsync()
	}
	NewJSONResponse().Status(http.StatusCreated).Body(res).Write(w)
}

type statsResponse struct {
	stats.Report
	IncidentsLink string     `json:"incidentsLink,omitempty"`
	Version       uint64     `json:"version"`
	Error         *ErrorBody `json:"error,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	q := ParseStatsQuery(r.URL.Query(), s.now())
	rep, err := s.memo.Run(snap.Version, snap.Stats.Tree, q)
	if s.metrics != nil {
		s.metrics.ObserveStats(err)
	}
	if err != nil && core.ErrorCode(err) == "" {
		s.events.LogError(r.Context(), "Stats query failed", err, "stats_failed", log.OpSlice, nil)
		InternalServerError("could not compute statistics").Write(w)
		return
	}
	if err != nil {
		// Recoverable: the view shows the message next to an empty table.
		rep = stats.Report{Query: q, Rows: []core.FilteredRow{}}
	}

	NewJSONResponse().Body(statsResponse{
		Report:        rep,
		IncidentsLink: incidentsLink(q),
		Version:       snap.Version,
		Error:         NewErrorBody(err),
	}).Write(w)
}

// incidentsLink is the incidents view URL for the selected driver and
// months, or "" when the selection cannot be bridged.
func incidentsLink(q stats.Query) string {
	query, ok := bridge.ForStats(q)
	if !ok {
		return ""
	}
	return "/api/incidents?" + query
}

func (s *Server) handleStatsDrivers(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current(w)
	if !ok {
		return
	}
	NewJSONResponse().Body(map[string]any{
		"drivers": facets.FromStatsDrivers(snap.Stats.Drivers),
		"months":  facets.MonthOptions(),
		"version": snap.Version,
	}).Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Refresh(r.Context())
	if err != nil {
		s.events.LogError(r.Context(), "Manual refresh failed", err, "refresh_failed", log.OpRefresh, nil)
		ErrorResponse(http.StatusBadGateway, errors.New("snapshot refresh failed")).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"version":   snap.Version,
		"fetchedAt": snap.FetchedAt,
		"records":   len(snap.Records),
	}).Write(w)
}
