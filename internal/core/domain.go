package core

import (
	"strconv"
	"strings"
	"time"
)

// Well-known incident sheet headers.
const (
	FieldDriverName   = "Driver Name"
	FieldTerminal     = "Terminal"
	FieldDateTime     = "Date Time"
	FieldIncident     = "Incident"
	FieldDocumentedBy = "Documented By"
	FieldType         = "Type"
	FieldAmount       = "AMOUNT $ TICKET OR DAMAGE"
	FieldCSACategory  = "CSA BASIC Category & Group Description"
	FieldCSAPoints    = "CSA Points"
	FieldAttachment   = "ATTACHMENT"
	FieldAction       = "ACTION"
	FieldStatus       = "status"
)

type (
	// Record is one incident row keyed by sheet header. Values are strings or
	// numbers as delivered by the data source.
	Record map[string]any

	FacetOption struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	// OptionGroup is a titled group of options, e.g. incident types per
	// taxonomy column.
	OptionGroup struct {
		ColumnName string        `json:"columnName"`
		Items      []FacetOption `json:"items"`
	}

	DriverRow struct {
		Name     string `json:"name"`
		Terminal string `json:"terminal"`
		Status   string `json:"status"`
	}

	TypeGroup struct {
		ColumnName string   `json:"columnName"`
		Items      []string `json:"items"`
	}

	Taxonomy struct {
		Drivers []DriverRow `json:"drivers"`
		Types   []TypeGroup `json:"types"`
	}

	Attachment struct {
		Content     string `json:"content"`
		ContentType string `json:"contentType"`
		FileName    string `json:"fileName"`
	}

	// IncidentReport is a new incident submitted from the report form.
	IncidentReport struct {
		DriverName  string      `json:"driverName"`
		DateTime    time.Time   `json:"datetime"`
		Description string      `json:"description"`
		Incident    string      `json:"incident"`
		SubmittedBy string      `json:"submittedBy"`
		File        *Attachment `json:"file,omitempty"`
	}
)

// Field returns the value stored under name rendered as a string.
func (r Record) Field(name string) (string, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// Attachments splits the attachment cell into one link per line.
func (r Record) Attachments() []string {
	raw, ok := r.Field(FieldAttachment)
	if !ok {
		return nil
	}
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if link := strings.TrimSpace(line); link != "" {
			out = append(out, link)
		}
	}
	return out
}

// Validate checks the fields the report form marks as required.
func (r IncidentReport) Validate() error {
	var missing []string
	if strings.TrimSpace(r.DriverName) == "" {
		missing = append(missing, "driverName")
	}
	if strings.TrimSpace(r.Incident) == "" {
		missing = append(missing, "incident")
	}
	if strings.TrimSpace(r.SubmittedBy) == "" {
		missing = append(missing, "submittedBy")
	}
	if strings.TrimSpace(r.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	if len(r.Description) > 2000 {
		return ErrDescriptionTooLong
	}
	return nil
}

// RecordLayout is the timestamp layout written for submitted incidents.
const RecordLayout = "2006-01-02 15:04:05"

// Record lays the report out under the incident sheet headers, with the
// timestamp rendered in loc.
func (r IncidentReport) Record(loc *time.Location) Record {
	if loc == nil {
		loc = time.UTC
	}
	rec := Record{
		FieldDriverName:   strings.TrimSpace(r.DriverName),
		FieldDateTime:     r.DateTime.In(loc).Format(RecordLayout),
		FieldType:         strings.TrimSpace(r.Incident),
		FieldIncident:     strings.TrimSpace(r.Description),
		FieldDocumentedBy: strings.TrimSpace(r.SubmittedBy),
	}
	if r.File != nil && r.File.FileName != "" {
		rec[FieldAttachment] = r.File.FileName
	}
	return rec
}
