package tracing

import (
	"encoding/json"
	"time"
)

// Arguments holds the snapshots of a call's arguments. Positional arguments
// keep their order; named arguments are keyed by parameter name.
type Arguments struct {
	Positional []json.RawMessage          `json:"args"`
	Keyword    map[string]json.RawMessage `json:"kwargs"`
}

// ErrorInfo describes the failure of a wrapped call.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// QueryError describes the failure of a data-access operation. Kind is a
// stable categorical tag, Message is human readable, Raw carries the
// underlying driver diagnostic.
type QueryError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Raw     string `json:"raw"`
}

// Query error kinds.
const (
	KindUniqueViolation     = "uniqueness-violation"
	KindNotNullViolation    = "not-null-violation"
	KindForeignKeyViolation = "foreign-key-violation"
	KindCheckViolation      = "check-violation"
	KindSyntaxError         = "syntax-error"
	KindConnectivity        = "connectivity"
	KindGeneric             = "generic"
)

// CallRecord is one completed invocation of a wrapped business operation.
// Result is nil if the call failed, in which case Raised is set.
type CallRecord struct {
	QualifiedName string          `json:"qualified_name"`
	Arguments     Arguments       `json:"arguments"`
	Result        json.RawMessage `json:"result,omitempty"`
	Raised        *ErrorInfo      `json:"raised,omitempty"`
	DurationMS    float64         `json:"duration_ms"`
	StartedAt     float64         `json:"started_at"`
}

// QueryRecord is one completed data-access operation. RowCount is the
// number of rows read, or affected for writes, and is nil on failure.
type QueryRecord struct {
	OperationText string            `json:"operation_text"`
	Parameters    []json.RawMessage `json:"parameters"`
	RowCount      *int64            `json:"row_count,omitempty"`
	DurationMS    float64           `json:"duration_ms"`
	StartedAt     float64           `json:"started_at"`
	Error         *QueryError       `json:"error,omitempty"`
}

// RequestInfo is request metadata supplied by the HTTP layer.
type RequestInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	StatusCode  int    `json:"status_code,omitempty"`
	Controller  string `json:"controller,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Timing marks the boundaries of a request, in fractional unix seconds.
type Timing struct {
	RequestStart float64 `json:"request_start"`
	RequestEnd   float64 `json:"request_end"`
	DurationMS   float64 `json:"duration_ms"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// millis converts d to fractional milliseconds, rounded to the microsecond.
func millis(d time.Duration) float64 {
	if d < 0 {
		d = 0
	}
	return float64(d.Microseconds()) / 1e3
}
