package planner

import "fmt"

// infeasibleError means even evicting every idle model cannot free the
// requested bytes. The caller queues the request; nothing is evicted.
type infeasibleError struct {
	required  int64
	available int64
}

func (e infeasibleError) Error() string {
	return fmt.Sprintf("eviction infeasible: need %d bytes, %d evictable", e.required, e.available)
}

// IsInfeasible reports whether err indicates no eviction plan exists.
func IsInfeasible(err error) bool {
	_, ok := err.(infeasibleError)
	return ok
}
