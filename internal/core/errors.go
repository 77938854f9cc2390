package core

import (
	"errors"
	"strings"
)

// Recoverable conditions surfaced to the presentation layer.
var (
	ErrMissingSelection         = errors.New("missing selection")
	ErrNoDataForDriver          = errors.New("no data for driver")
	ErrNoDataForYear            = errors.New("no data for year")
	ErrInvalidMonthRange        = errors.New("invalid month range")
	ErrMalformedQueryParameters = errors.New("malformed query parameters")
	ErrIndexOutOfRange          = errors.New("index out of range")
	ErrUnknownFacet             = errors.New("unknown facet")
	ErrMissingRequiredField     = errors.New("complete the required fields")
	ErrDescriptionTooLong       = errors.New("description too long (max 2000 characters)")
)

// MissingFieldsError lists the required report fields left empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return ErrMissingRequiredField.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrMissingRequiredField
}

// ErrorCode maps an error to a stable machine-readable code, or "" when the
// error is not one of the named conditions.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingSelection):
		return "missing_selection"
	case errors.Is(err, ErrNoDataForDriver):
		return "no_data_for_driver"
	case errors.Is(err, ErrNoDataForYear):
		return "no_data_for_year"
	case errors.Is(err, ErrInvalidMonthRange):
		return "invalid_month_range"
	case errors.Is(err, ErrMalformedQueryParameters):
		return "malformed_query_parameters"
	case errors.Is(err, ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, ErrUnknownFacet):
		return "unknown_facet"
	case errors.Is(err, ErrMissingRequiredField):
		return "missing_required_field"
	case errors.Is(err, ErrDescriptionTooLong):
		return "description_too_long"
	default:
		return ""
	}
}
