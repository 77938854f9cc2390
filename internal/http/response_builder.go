package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"norloworld/internal/core"
	"norloworld/internal/snapshot"
)

// ErrorBody is the JSON shape of a named error.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorBody describes err, or returns nil for a nil error. Errors without
// a named code are reported as "internal".
func NewErrorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	code := core.ErrorCode(err)
	switch {
	case code != "":
	case errors.Is(err, errBadPayload):
		code = "invalid_request"
	case errors.Is(err, snapshot.ErrNotLoaded):
		code = "not_ready"
	default:
		code = "internal"
	}
	return &ErrorBody{Code: code, Message: err.Error()}
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to w.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

// ErrorResponse wraps err as {"error": {...}} with the given status.
func ErrorResponse(statusCode int, err error) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(map[string]*ErrorBody{"error": NewErrorBody(err)})
}

func BadRequestError(err error) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, err)
}

func UnprocessableEntityError(err error) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, err)
}

// InternalServerError hides the cause behind a generic message.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, errors.New(message))
}

func ServiceUnavailableError(err error) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, err)
}
