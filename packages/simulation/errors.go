package simulation

import "errors"

var (
	// ErrNoSuchLabel is returned when an output label was never attached to a recorded transaction.
	ErrNoSuchLabel = errors.New("no output with this label")

	// ErrTypeMismatch is returned when a labeled output exists but carries a different state type than requested.
	ErrTypeMismatch = errors.New("labeled output has a different state type")

	// ErrUnexpectedSuccess is returned by FailsWith when verification passes even though a failure was expected.
	ErrUnexpectedSuccess = errors.New("verification unexpectedly succeeded")
)
