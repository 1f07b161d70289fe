package diff

import (
	"errors"
	"fmt"
)

// ErrCallback is matched by every error a Callback returned.
var ErrCallback = errors.New("diff callback failed")

// ErrUnexpectedPath is returned when a delta event does not match the node
// the walker has open.
var ErrUnexpectedPath = errors.New("delta event for a node that is not open")

// CallbackError wraps an error returned by a Callback with the node and the
// event that failed.
type CallbackError struct {
	Path  string
	Event string
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s '%s': %v", e.Event, e.Path, e.Err)
}

// Is matches ErrCallback.
func (e *CallbackError) Is(target error) bool {
	return target == ErrCallback
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
