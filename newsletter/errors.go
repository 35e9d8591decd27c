package newsletter

import (
	"errors"
	"strings"
)

// Sentinel errors returned by Broadcast. ErrValidation maps to a client
// error and ErrDependency to a server error at the HTTP boundary.
var (
	ErrValidation = errors.New("newsletter: invalid message")
	ErrDependency = errors.New("newsletter: dependency unavailable")
)

// ValidationError names the message fields that failed validation. It
// matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "invalid " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
