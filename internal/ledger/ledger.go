// Package ledger holds the authoritative in-memory record of GPU capacity,
// per-model footprint, and per-model lifecycle state. Nothing else in the
// process mutates VRAM accounting except through this API.
package ledger

import (
	"sync"
	"time"
)

// State is the lifecycle state of one model record.
type State string

const (
	StateUnloaded State = "unloaded"
	StateReserved State = "reserved"
	StateLoading  State = "loading"
	StateActive   State = "active"
	StateIdle     State = "idle"
	StateEvicting State = "evicting"
)

// allowed maps every legal state transition. StateEvicting -> StateIdle is
// the unwind path for an aborted eviction cycle.
var allowed = map[State][]State{
	StateUnloaded: {StateReserved},
	StateReserved: {StateLoading, StateUnloaded},
	StateLoading:  {StateActive, StateUnloaded},
	StateActive:   {StateIdle},
	StateIdle:     {StateActive, StateEvicting},
	StateEvicting: {StateUnloaded, StateIdle},
}

func transitionOK(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Record tracks one distinct model id. Records are created lazily on first
// reference and never deleted; an unused model simply stays StateUnloaded.
type Record struct {
	ID             string
	FootprintBytes int64
	State          State
	ActiveRefcount int
	LastActiveAt   time.Time
	// ChangedAt is the time of the last state transition; the reaper uses
	// it to age out reservations whose owner died.
	ChangedAt time.Time
}

// Snapshot is a consistent point-in-time copy of the whole ledger.
type Snapshot struct {
	CapacityBytes int64
	UsedBytes     int64
	Records       []Record
}

// Ledger is the process-wide VRAM accounting structure. All methods are safe
// for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	capacity int64
	used     int64
	records  map[string]*Record
	now      func() time.Time
}

// New returns an empty ledger for a GPU with the given capacity in bytes.
func New(capacityBytes int64) *Ledger {
	return &Ledger{
		capacity: capacityBytes,
		records:  make(map[string]*Record),
		now:      time.Now,
	}
}

// record returns the record for id, creating it lazily. Caller holds mu.
func (l *Ledger) record(id string) *Record {
	rec, ok := l.records[id]
	if !ok {
		rec = &Record{ID: id, State: StateUnloaded, ChangedAt: l.now()}
		l.records[id] = rec
	}
	return rec
}

// Capacity returns the configured VRAM capacity in bytes.
func (l *Ledger) Capacity() int64 { return l.capacity }

// Snapshot returns a consistent copy of capacity, usage and all records.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := Snapshot{CapacityBytes: l.capacity, UsedBytes: l.used}
	snap.Records = make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		snap.Records = append(snap.Records, *rec)
	}
	return snap
}

// Footprint returns the known footprint for id, 0 if not yet discovered.
func (l *Ledger) Footprint(id string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rec, ok := l.records[id]; ok {
		return rec.FootprintBytes
	}
	return 0
}

// Mark transitions a record to newState, enforcing the transition table.
// StateIdle -> StateEvicting is refused while inferences are in flight.
func (l *Ledger) Mark(id string, newState State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.record(id)
	if !transitionOK(rec.State, newState) {
		return invalidTransitionError{id: id, from: rec.State, to: newState}
	}
	if rec.State == StateIdle && newState == StateEvicting && rec.ActiveRefcount > 0 {
		return invalidTransitionError{id: id, from: rec.State, to: newState}
	}
	rec.State = newState
	rec.ChangedAt = l.now()
	return nil
}

// Reserve atomically checks capacity and claims footprint bytes for id,
// moving it StateUnloaded -> StateReserved. The claim counts against
// capacity before the physical load completes so concurrent admissions
// cannot overcommit.
func (l *Ledger) Reserve(id string, footprint int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.record(id)
	if !transitionOK(rec.State, StateReserved) {
		return invalidTransitionError{id: id, from: rec.State, to: StateReserved}
	}
	if l.used+footprint > l.capacity {
		return insufficientCapacityError{id: id, need: footprint, free: l.capacity - l.used}
	}
	rec.State = StateReserved
	rec.FootprintBytes = footprint
	rec.ChangedAt = l.now()
	l.used += footprint
	return nil
}

// Release returns a record to StateUnloaded and gives its footprint back.
// Legal from StateReserved (load aborted), StateLoading (load failed) and
// StateEvicting (unload completed).
func (l *Ledger) Release(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return invalidTransitionError{id: id, from: StateUnloaded, to: StateUnloaded}
	}
	switch rec.State {
	case StateReserved, StateLoading, StateEvicting:
	default:
		return invalidTransitionError{id: id, from: rec.State, to: StateUnloaded}
	}
	l.used -= rec.FootprintBytes
	if l.used < 0 {
		l.used = 0
	}
	rec.State = StateUnloaded
	rec.ChangedAt = l.now()
	return nil
}

// Activate commits a successful load: StateLoading -> StateActive with one
// in-flight use (the requester). actualBytes, when positive, replaces the
// reserved estimate and usage is adjusted by the difference; the footprint
// is immutable afterwards. Growth beyond the reserved estimate is clamped
// at the remaining free bytes, so reconciliation can never push usage past
// capacity.
func (l *Ledger) Activate(id string, actualBytes int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok || rec.State != StateLoading {
		from := StateUnloaded
		if ok {
			from = rec.State
		}
		return invalidTransitionError{id: id, from: from, to: StateActive}
	}
	if actualBytes > 0 && actualBytes != rec.FootprintBytes {
		delta := actualBytes - rec.FootprintBytes
		if free := l.capacity - l.used; delta > free {
			delta = free
		}
		l.used += delta
		if l.used < 0 {
			l.used = 0
		}
		rec.FootprintBytes += delta
	}
	rec.State = StateActive
	rec.ActiveRefcount = 1
	rec.LastActiveAt = l.now()
	rec.ChangedAt = rec.LastActiveAt
	return nil
}

// BeginUse is the admission fast path: if the model is already resident
// (StateActive or StateIdle) it bumps the refcount, refreshes recency and
// reports true. Any other state reports false and leaves the record alone.
func (l *Ledger) BeginUse(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return false
	}
	switch rec.State {
	case StateActive:
	case StateIdle:
		rec.State = StateActive
		rec.ChangedAt = l.now()
	default:
		return false
	}
	rec.ActiveRefcount++
	rec.LastActiveAt = l.now()
	return true
}

// EndUse records the completion of one inference unit. When the refcount
// reaches zero the record becomes StateIdle. Calling it with no use in
// flight is an invalid transition, never a panic or an underflow.
func (l *Ledger) EndUse(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok || rec.State != StateActive || rec.ActiveRefcount <= 0 {
		from := StateUnloaded
		if ok {
			from = rec.State
		}
		return invalidTransitionError{id: id, from: from, to: StateIdle}
	}
	rec.ActiveRefcount--
	rec.LastActiveAt = l.now()
	if rec.ActiveRefcount == 0 {
		rec.State = StateIdle
		rec.ChangedAt = rec.LastActiveAt
	}
	return nil
}

// ForceIdle demotes a stale StateActive record to StateIdle and clears its
// refcount. Reaper-only recovery for active markers whose owner died.
func (l *Ledger) ForceIdle(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok || rec.State != StateActive {
		from := StateUnloaded
		if ok {
			from = rec.State
		}
		return invalidTransitionError{id: id, from: from, to: StateIdle}
	}
	rec.ActiveRefcount = 0
	rec.State = StateIdle
	rec.ChangedAt = l.now()
	return nil
}
