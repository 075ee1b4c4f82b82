package core

import "fmt"

const (
	MsgStartAfterEnd    = "start date must be earlier than the end date."
	MsgRangeTooLong     = "Date range should not exceed three months."
	MaxWindowMonths     = 3
	DefaultWindowMonths = 3
)

// ValidationError reports a caller input the service refuses to process.
// Its message is returned to clients verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// InfrastructureError reports a failure of the transaction ledger.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}
