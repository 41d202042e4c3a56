// Package scheduler admits, serves and evicts model instances against a
// fixed VRAM budget. It is structured into small files by concern:
//
//   - scheduler.go: core Scheduler type, constructor, snapshot/notify APIs.
//   - config.go: Config and package defaults; New applies defaults.
//   - admission.go: RequestLoad protocol and in-flight attempt sharing.
//   - evict.go: eviction plan execution under per-model locks.
//   - reaper.go: Sweep, the staleness recovery pass.
//   - errors.go: error types and helpers (IsLoadFailed, IsModelNotFound, ...).
//   - events.go: EventPublisher contract; eventpub_memory.go for tests.
//   - metrics.go: prometheus collectors.
//
// The scheduler is a library: it performs no physical GPU work itself. The
// Runtime collaborator loads and unloads models and reports footprints; the
// lockd coordinator arbitrates between concurrent admission cycles, possibly
// across processes. Callers retry Queued results on their own cadence; the
// scheduler never retries for them.
package scheduler
