package matching

import "fmt"

// InputValidationError marks a structurally invalid request. It is the only
// error class that surfaces to the caller as success=false.
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// StoreUnavailableError wraps a reference-store timeout or connection failure.
// Queries degrade to zero matches with a diagnostic flag instead of failing.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("reference store unavailable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// ParseError marks a single malformed candidate record from the store. The
// candidate is skipped and logged; retrieval of the others continues.
type ParseError struct {
	OrganizationName string
	Reason           string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed candidate %q: %s", e.OrganizationName, e.Reason)
}
