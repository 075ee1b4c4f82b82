package log

import (
	"sort"

	"rewards/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent        = "component"
	FieldRequestID        = "request_id"
	FieldClientIP         = "client_ip"
	FieldMethod           = "method"
	FieldPath             = "path"
	FieldQuery            = "query"
	FieldStatusCode       = "status_code"
	FieldDuration         = "duration_ms"
	FieldUserAgent        = "user_agent"
	FieldReferer          = "referer"
	FieldSuccess          = "success"
	FieldError            = "error"
	FieldOperation        = "operation"
	FieldCustomerID       = "customer_id"
	FieldStartDate        = "start_date"
	FieldEndDate          = "end_date"
	FieldMonthsBetween    = "months_between"
	FieldExtraDays        = "extra_days"
	FieldTotalPoints      = "total_points"
	FieldCustomerCount    = "customer_count"
	FieldTransactionCount = "transaction_count"
	FieldTransactionID    = "transaction_id"
	FieldAmount           = "amount"
	FieldDate             = "date"
	FieldMessageID        = "message_id"
	FieldBackend          = "backend"
)

// Component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentRewards  = "rewards"
	ComponentLedger   = "ledger"
	ComponentWorker   = "worker"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
)

// OpRecord names the operation that stores a purchase.
const OpRecord = "record"

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

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithCustomer adds the customer id field
func (f LogFields) WithCustomer(customerID int64) LogFields {
	f[FieldCustomerID] = customerID
	return f
}

// WithWindow adds the window bounds and its month/day split
func (f LogFields) WithWindow(rng core.DateRange) LogFields {
	f[FieldStartDate] = rng.Start.String()
	f[FieldEndDate] = rng.End.String()
	f[FieldMonthsBetween] = rng.Months()
	f[FieldExtraDays] = rng.ExtraDays()
	return f
}

// WithTransaction adds transaction fields
func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	f[FieldTransactionID] = tx.ID
	f[FieldCustomerID] = tx.CustomerID
	f[FieldAmount] = tx.Amount.String()
	f[FieldDate] = tx.Date.String()
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice returns the fields as slog key/value pairs, ordered by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
