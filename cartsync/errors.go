package cartsync

import (
	"errors"
	"fmt"
)

// ErrAuthRequired is returned when an operation needs a signed-in user.
var ErrAuthRequired = errors.New("no authenticated user")

// ValidationError reports a bad input to PlaceOrder. Field names the
// offending input so the caller can show a message next to it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// PersistenceError wraps a remote store failure that is surfaced to the
// caller. Fire-and-forget line mutations log instead.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
