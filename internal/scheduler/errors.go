package scheduler

import "fmt"

// modelNotFoundError signals a load request for an id the runtime does not
// know about.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// modelTooLargeError signals a model whose footprint exceeds total capacity;
// no amount of eviction can ever admit it.
type modelTooLargeError struct {
	id        string
	footprint int64
	capacity  int64
}

func (e modelTooLargeError) Error() string {
	return fmt.Sprintf("model %s footprint %d bytes exceeds capacity %d", e.id, e.footprint, e.capacity)
}

// IsModelTooLarge reports whether the model can never fit in VRAM.
func IsModelTooLarge(err error) bool {
	_, ok := err.(modelTooLargeError)
	return ok
}

// loadFailedError wraps a runtime load failure; the reservation has already
// been released when it surfaces.
type loadFailedError struct {
	id  string
	err error
}

func (e loadFailedError) Error() string { return "load failed for " + e.id + ": " + e.err.Error() }
func (e loadFailedError) Unwrap() error { return e.err }

// IsLoadFailed reports whether err is a collaborator load failure.
func IsLoadFailed(err error) bool {
	_, ok := err.(loadFailedError)
	return ok
}

// partialEvictionFailureError signals that unloads failed mid-plan and the
// freed bytes did not cover the requirement; the cycle was aborted and its
// state changes unwound.
type partialEvictionFailureError struct {
	required int64
	freed    int64
}

func (e partialEvictionFailureError) Error() string {
	return fmt.Sprintf("partial eviction failure: freed %d of %d required bytes", e.freed, e.required)
}

// IsPartialEvictionFailure reports whether an eviction plan aborted midway.
func IsPartialEvictionFailure(err error) bool {
	_, ok := err.(partialEvictionFailureError)
	return ok
}

// planConflictError signals that a planned eviction victim changed state
// (went active, or its lock is held elsewhere) before it could be marked.
// The cycle aborts and the request is queued.
type planConflictError struct{ id string }

func (e planConflictError) Error() string { return "eviction plan conflict on " + e.id }

func isPlanConflict(err error) bool {
	_, ok := err.(planConflictError)
	return ok
}
