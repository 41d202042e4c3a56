package ledger

import "fmt"

// invalidTransitionError signals a state change outside the allowed table.
// It points at a programming or race bug in the caller, not at load.
type invalidTransitionError struct {
	id   string
	from State
	to   State
}

func (e invalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for %s: %s -> %s", e.id, e.from, e.to)
}

// IsInvalidTransition reports whether err is a refused state transition.
func IsInvalidTransition(err error) bool {
	_, ok := err.(invalidTransitionError)
	return ok
}

// insufficientCapacityError signals that a reservation does not fit. This is
// an expected steady-state condition, surfaced to callers as backpressure.
type insufficientCapacityError struct {
	id   string
	need int64
	free int64
}

func (e insufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity for %s: need %d bytes, %d free", e.id, e.need, e.free)
}

// IsInsufficientCapacity reports whether err indicates the reservation did
// not fit within capacity.
func IsInsufficientCapacity(err error) bool {
	_, ok := err.(insufficientCapacityError)
	return ok
}
