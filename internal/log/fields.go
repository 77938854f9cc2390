package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration"
	FieldDurationMs  = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorCode   = "error_code"
	FieldOperation   = "operation"
	FieldVersion     = "snapshot_version"
	FieldCount       = "count"
	FieldDriver      = "driver"
	FieldYear        = "year"
	FieldMonthRange  = "month_range"
	FieldFilters     = "filters"
	FieldIncidentID  = "incident_id"
	FieldIncidentRef = "sheets_ref"
	FieldBackend     = "backend"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentIncident = "incident"
	ComponentStats    = "stats"
	ComponentSnapshot = "snapshot"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentCache    = "cache"
	ComponentBackend  = "backend"
	ComponentCLI      = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpFilter   = "filter"
	OpSlice    = "slice"
	OpRefresh  = "refresh"
	OpAppend   = "append"
	OpSync     = "sync"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message and, for named conditions, its code.
func (f LogFields) WithError(err error, code string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		if code != "" {
			f[FieldErrorCode] = code
		}
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithIncident adds the fields identifying a submitted incident.
func (f LogFields) WithIncident(id, driver, ref string) LogFields {
	f[FieldIncidentID] = id
	f[FieldDriver] = driver
	if ref != "" {
		f[FieldIncidentRef] = ref
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDurationMs] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
