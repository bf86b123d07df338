package logging

import "fmt"

// OperationError annotates an error with operation metadata. Source is set
// for failures tied to a single image reference within a batch.
type OperationError struct {
	Operation string
	RequestID string
	Source    string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	switch {
	case e.RequestID != "" && e.Source != "":
		return fmt.Sprintf("%s (request_id=%s source=%s): %v", e.Operation, e.RequestID, e.Source, e.Err)
	case e.RequestID != "":
		return fmt.Sprintf("%s (request_id=%s): %v", e.Operation, e.RequestID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps an error with structured context about where it occurred.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// NewSourceError wraps a per-item error with the source reference that failed.
func NewSourceError(operation, requestID, source string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Source: source, Err: err}
}
