package log

import (
	"errors"

	"ledger/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldAccountID   = "account_id"
	FieldTxnID       = "transaction_id"
	FieldKind        = "type"
	FieldAmount      = "amount"
	FieldCategory    = "category"
	FieldEvent       = "event"
	FieldCacheResult = "cache"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentReports = "reports"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentCache   = "cache"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpReport   = "report"
	OpPublish  = "publish"
	OpMigrate  = "migrate"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation     = "validation_error"
	ErrorTypeConfiguration  = "configuration_error"
	ErrorTypeDatabase       = "database_error"
	ErrorTypeNetwork        = "network_error"
	ErrorTypeNotFound       = "not_found_error"
	ErrorTypeConflict       = "conflict_error"
	ErrorTypeConsistency    = "consistency_error"
	ErrorTypeInitialization = "initialization_error"
	ErrorTypeInternal       = "internal_error"
)

// ErrorType classifies err into one of the ErrorType constants.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		return ErrorTypeConflict
	case errors.Is(err, core.ErrConsistency):
		return ErrorTypeConsistency
	case errors.Is(err, core.ErrInitialization):
		return ErrorTypeInitialization
	default:
		return ErrorTypeInternal
	}
}

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error and its classification.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPeriod adds the report month.
func (f LogFields) WithPeriod(p core.Period) LogFields {
	f[FieldYear] = p.Year
	f[FieldMonth] = p.Month
	return f
}

// WithTransaction adds the fields identifying a transaction write.
func (f LogFields) WithTransaction(id int64, in core.TransactionInput) LogFields {
	if id != 0 {
		f[FieldTxnID] = id
	}
	f[FieldAccountID] = in.AccountID
	f[FieldKind] = string(in.Kind)
	f[FieldAmount] = in.Amount.String()
	f[FieldCategory] = in.Category
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
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
