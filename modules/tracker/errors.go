package tracker

import "fmt"

// ValidationError reports a request payload that fails validation before
// any store mutation. The API layer maps it to a 400 response.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func missingField(field string) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf("%s is required", field)}
}

// ReferenceError reports an assignedUser value that does not resolve to an
// existing user. Like ValidationError it rejects the request before the
// mutation that would have created the dangling reference.
type ReferenceError struct {
	UserID string
}

func (e *ReferenceError) Error() string {
	return "assigned user does not exist"
}
