package scheduler

import "time"

// Event names published over a model's lifecycle. The set is part of the
// scheduler's observable surface; consumers match on these strings.
const (
	EventAdmissionStart  = "admission_start"
	EventAdmissionQueued = "admission_queued"
	EventLoadStart       = "load_start"
	EventLoadReady       = "load_ready"
	EventLoadError       = "load_error"
	EventEvictDone       = "evict_done"
	EventInferenceDone   = "inference_done"
	EventReapReservation = "reap_reservation"
	EventReapActive      = "reap_active"
	EventIdleTimeout     = "idle_timeout"
)

// Event is one lifecycle notification: which model, what happened, when,
// plus optional detail fields (byte counts, durations, error text).
type Event struct {
	Name    string
	ModelID string
	At      time.Time
	Fields  map[string]any
}

// EventPublisher receives scheduler events. Implementations must be
// non-blocking; a slow consumer may not stall an admission cycle.
type EventPublisher interface {
	Publish(Event)
}

// publish stamps and forwards one event.
func (s *Scheduler) publish(name, modelID string, fields map[string]any) {
	s.publisher.Publish(Event{Name: name, ModelID: modelID, At: time.Now(), Fields: fields})
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
